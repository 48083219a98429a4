package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"dfs-go/internal/database/migrations"
	"dfs-go/internal/dfs"
	"dfs-go/internal/model"
)

// SQLiteDatabase implements dfs.MetadataStore using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *queries
	path    string
	now     func() time.Time
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return NewSQLiteDatabaseFromDB(db, path), nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, path string) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: newQueries(db),
		path:    path,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps PRAGMAs in effect and ":memory:" databases shared.
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// inTx runs fn inside a transaction, committing if fn returns nil.
func (s *SQLiteDatabase) inTx(fn func(ctx context.Context, q *queries) error) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, s.queries.withTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// User operations

func (s *SQLiteDatabase) CreateUser(username, email, passwordHash string) (*model.User, error) {
	ctx := context.Background()
	email = model.NormalizeEmail(email)
	id, err := s.queries.insertUser(ctx, username, email, passwordHash, s.now())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: email already registered: %s", dfs.ErrValidation, email)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user, err := s.queries.getUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading created user: %w", err)
	}
	return user, nil
}

func (s *SQLiteDatabase) FindUserByEmail(email string) (*model.User, error) {
	user, err := s.queries.getUserByEmail(context.Background(), model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return user, nil
}

func (s *SQLiteDatabase) FindUserByID(id int64) (*model.User, error) {
	user, err := s.queries.getUserByID(context.Background(), id)
	if err != nil {
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return user, nil
}

// Session operations

func (s *SQLiteDatabase) CreateSession(token string, userID int64, expiresAt time.Time) error {
	if err := s.queries.insertSession(context.Background(), token, userID, expiresAt.UTC()); err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindUserBySession(token string, now time.Time) (*model.User, error) {
	user, err := s.queries.getUserBySession(context.Background(), token, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("finding session: %w", err)
	}
	return user, nil
}

func (s *SQLiteDatabase) DeleteSession(token string) error {
	if err := s.queries.deleteSession(context.Background(), token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// Directory operations

func (s *SQLiteDatabase) CreateDirectory(p string, ownerID int64) (*model.Directory, error) {
	var dir *model.Directory
	err := s.inTx(func(ctx context.Context, q *queries) error {
		var err error
		dir, err = s.ensureDirectory(ctx, q, p, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// ensureDirectory creates p and its missing ancestors, reusing existing ones.
// A segment already taken by a file is a validation error.
func (s *SQLiteDatabase) ensureDirectory(ctx context.Context, q *queries, p string, ownerID int64) (*model.Directory, error) {
	chain := segments(p)
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: invalid directory path %q", dfs.ErrValidation, p)
	}

	var parent *model.Directory
	for _, segment := range chain {
		dir, err := q.getDirectoryByPath(ctx, ownerID, segment)
		if err != nil {
			return nil, fmt.Errorf("finding directory %s: %w", segment, err)
		}
		if dir == nil {
			file, err := q.getFileByPathAndOwner(ctx, ownerID, segment)
			if err != nil {
				return nil, fmt.Errorf("checking for file at %s: %w", segment, err)
			}
			if file != nil {
				return nil, fmt.Errorf("%w: a file already exists at %s", dfs.ErrValidation, segment)
			}

			var parentID sql.NullInt64
			if parent != nil {
				parentID = sql.NullInt64{Int64: parent.ID, Valid: true}
			}
			id, err := q.insertDirectory(ctx, ownerID, segment, parentID, s.now())
			if err != nil {
				return nil, fmt.Errorf("inserting directory %s: %w", segment, err)
			}
			dir, err = q.getDirectoryByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("loading directory %s: %w", segment, err)
			}
		}
		parent = dir
	}
	return parent, nil
}

func (s *SQLiteDatabase) FindDirectoryByPath(p string, ownerID int64) (*model.Directory, error) {
	dir, err := s.queries.getDirectoryByPath(context.Background(), ownerID, p)
	if err != nil {
		return nil, fmt.Errorf("finding directory by path: %w", err)
	}
	return dir, nil
}

func (s *SQLiteDatabase) FindChildDirectories(p string, ownerID int64) ([]*model.Directory, error) {
	ctx := context.Background()
	dir, err := s.queries.getDirectoryByPath(ctx, ownerID, p)
	if err != nil {
		return nil, fmt.Errorf("finding directory by path: %w", err)
	}
	if dir == nil {
		return nil, nil
	}

	dirs, err := s.queries.getChildDirectories(ctx, dir.ID)
	if err != nil {
		return nil, fmt.Errorf("finding child directories: %w", err)
	}
	return dirs, nil
}

func (s *SQLiteDatabase) MoveDirectory(oldPath, newPath string, ownerID int64) error {
	return s.inTx(func(ctx context.Context, q *queries) error {
		dir, err := q.getDirectoryByPath(ctx, ownerID, oldPath)
		if err != nil {
			return fmt.Errorf("finding directory: %w", err)
		}
		if dir == nil {
			return fmt.Errorf("%w: directory not found: %s", dfs.ErrNotFound, oldPath)
		}
		if dfs.IsDescendant(newPath, oldPath) {
			return fmt.Errorf("%w: cannot move %s into itself", dfs.ErrValidation, oldPath)
		}
		if err := checkUnused(ctx, q, newPath, ownerID); err != nil {
			return err
		}

		parent, err := s.ensureDirectory(ctx, q, path.Dir(newPath), ownerID)
		if err != nil {
			return err
		}

		if err := q.rewriteDirectoryPrefix(ctx, ownerID, oldPath+"/", newPath+"/"); err != nil {
			return fmt.Errorf("moving descendant directories: %w", err)
		}
		if err := q.rewriteFilePrefix(ctx, ownerID, oldPath+"/", newPath+"/"); err != nil {
			return fmt.Errorf("moving descendant files: %w", err)
		}
		parentID := sql.NullInt64{Int64: parent.ID, Valid: true}
		if err := q.updateDirectory(ctx, dir.ID, newPath, parentID); err != nil {
			return fmt.Errorf("moving directory: %w", err)
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteDirectory(p string, ownerID int64) error {
	return s.inTx(func(ctx context.Context, q *queries) error {
		dir, err := q.getDirectoryByPath(ctx, ownerID, p)
		if err != nil {
			return fmt.Errorf("finding directory: %w", err)
		}
		if dir == nil {
			return fmt.Errorf("%w: directory not found: %s", dfs.ErrNotFound, p)
		}

		prefix := p + "/"
		if err := q.deleteReplicasWithPrefix(ctx, ownerID, prefix); err != nil {
			return fmt.Errorf("deleting replicas: %w", err)
		}
		if err := q.deleteFilesWithPrefix(ctx, ownerID, prefix); err != nil {
			return fmt.Errorf("deleting files: %w", err)
		}
		if err := q.deleteDirectoriesWithPrefix(ctx, ownerID, prefix); err != nil {
			return fmt.Errorf("deleting subdirectories: %w", err)
		}
		if err := q.deleteDirectoryByID(ctx, dir.ID); err != nil {
			return fmt.Errorf("deleting directory: %w", err)
		}
		return nil
	})
}

// File operations

func (s *SQLiteDatabase) CreateFileRecord(file *model.FileRecord) error {
	return s.inTx(func(ctx context.Context, q *queries) error {
		if err := checkUnused(ctx, q, file.Path, file.OwnerID); err != nil {
			return err
		}

		parent, err := s.ensureDirectory(ctx, q, path.Dir(file.Path), file.OwnerID)
		if err != nil {
			return err
		}

		file.DirectoryID = sql.NullInt64{Int64: parent.ID, Valid: true}
		file.CreatedAt = s.now()
		id, err := q.insertFile(ctx, file)
		if err != nil {
			return fmt.Errorf("inserting file: %w", err)
		}
		file.ID = id
		return nil
	})
}

func (s *SQLiteDatabase) FindFileByPath(p string) (*model.FileRecord, error) {
	file, err := s.queries.getFileByPath(context.Background(), p)
	if err != nil {
		return nil, fmt.Errorf("finding file by path: %w", err)
	}
	return file, nil
}

func (s *SQLiteDatabase) FindFileByPathAndOwner(p string, ownerID int64) (*model.FileRecord, error) {
	file, err := s.queries.getFileByPathAndOwner(context.Background(), ownerID, p)
	if err != nil {
		return nil, fmt.Errorf("finding file by path: %w", err)
	}
	return file, nil
}

func (s *SQLiteDatabase) FindFilesUnderDirectory(p string, ownerID int64) ([]*model.FileRecord, error) {
	files, err := s.queries.getFilesWithPrefix(context.Background(), ownerID, p+"/")
	if err != nil {
		return nil, fmt.Errorf("finding files under directory: %w", err)
	}
	return files, nil
}

func (s *SQLiteDatabase) FindFilesInDirectory(p string, ownerID int64) ([]*model.FileRecord, error) {
	ctx := context.Background()
	dir, err := s.queries.getDirectoryByPath(ctx, ownerID, p)
	if err != nil {
		return nil, fmt.Errorf("finding directory by path: %w", err)
	}
	if dir == nil {
		return nil, nil
	}

	files, err := s.queries.getFilesByDirectoryID(ctx, dir.ID)
	if err != nil {
		return nil, fmt.Errorf("finding files in directory: %w", err)
	}
	return files, nil
}

func (s *SQLiteDatabase) MoveFile(oldPath, newPath string, ownerID int64) error {
	return s.inTx(func(ctx context.Context, q *queries) error {
		file, err := q.getFileByPathAndOwner(ctx, ownerID, oldPath)
		if err != nil {
			return fmt.Errorf("finding file: %w", err)
		}
		if file == nil {
			return fmt.Errorf("%w: file not found: %s", dfs.ErrNotFound, oldPath)
		}
		if err := checkUnused(ctx, q, newPath, ownerID); err != nil {
			return err
		}

		parent, err := s.ensureDirectory(ctx, q, path.Dir(newPath), ownerID)
		if err != nil {
			return err
		}

		parentID := sql.NullInt64{Int64: parent.ID, Valid: true}
		if err := q.updateFileLocation(ctx, file.ID, path.Base(newPath), newPath, parentID); err != nil {
			return fmt.Errorf("updating file path: %w", err)
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteFile(fileID int64) error {
	return s.inTx(func(ctx context.Context, q *queries) error {
		if err := q.deleteReplicas(ctx, fileID); err != nil {
			return fmt.Errorf("deleting replicas: %w", err)
		}
		if err := q.deleteFileByID(ctx, fileID); err != nil {
			return fmt.Errorf("deleting file: %w", err)
		}
		return nil
	})
}

// Replica operations

func (s *SQLiteDatabase) SaveReplicas(fileID int64, peerIDs []string) error {
	return s.inTx(func(ctx context.Context, q *queries) error {
		if err := q.deleteReplicas(ctx, fileID); err != nil {
			return fmt.Errorf("clearing replicas: %w", err)
		}
		for i, peerID := range peerIDs {
			if err := q.insertReplica(ctx, fileID, peerID, i); err != nil {
				return fmt.Errorf("saving replica on %s: %w", peerID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) FindReplicaPeerIDs(fileID int64) ([]string, error) {
	ids, err := s.queries.getReplicaPeerIDs(context.Background(), fileID)
	if err != nil {
		return nil, fmt.Errorf("finding replicas: %w", err)
	}
	return ids, nil
}

// Share operations

func (s *SQLiteDatabase) CreateShare(fileID, granteeID int64, permission model.Permission) error {
	if !permission.Valid() {
		return fmt.Errorf("%w: invalid permission %q", dfs.ErrValidation, permission)
	}
	if err := s.queries.upsertShare(context.Background(), fileID, granteeID, permission, s.now()); err != nil {
		return fmt.Errorf("creating share: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteShare(fileID, granteeID int64) error {
	if err := s.queries.deleteShare(context.Background(), fileID, granteeID); err != nil {
		return fmt.Errorf("deleting share: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindSharesForFile(fileID int64) ([]*model.Share, error) {
	shares, err := s.queries.getSharesForFile(context.Background(), fileID)
	if err != nil {
		return nil, fmt.Errorf("finding shares: %w", err)
	}
	return shares, nil
}

func (s *SQLiteDatabase) HasReadAccess(userID, fileID int64) (bool, error) {
	allowed, err := s.queries.hasReadAccess(context.Background(), userID, fileID)
	if err != nil {
		return false, fmt.Errorf("checking read access: %w", err)
	}
	return allowed, nil
}

// Operation tracking

func (s *SQLiteDatabase) CreateOperation(operation, parameters string) (*model.Operation, error) {
	ctx := context.Background()
	id, err := s.queries.insertOperation(ctx, operation, parameters, s.now())
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	op, err := s.queries.getOperationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading created operation: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	if err := s.queries.finishOperation(context.Background(), id, status, s.now()); err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	ops, err := s.queries.getOperations(context.Background(), limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	id, err := s.queries.getMaxOperationID(context.Background())
	if err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Migrate applies any pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// checkUnused fails when p is already taken by a file or directory of the owner.
func checkUnused(ctx context.Context, q *queries, p string, ownerID int64) error {
	dir, err := q.getDirectoryByPath(ctx, ownerID, p)
	if err != nil {
		return fmt.Errorf("checking for directory at %s: %w", p, err)
	}
	if dir != nil {
		return fmt.Errorf("%w: a directory already exists at %s", dfs.ErrValidation, p)
	}

	file, err := q.getFileByPathAndOwner(ctx, ownerID, p)
	if err != nil {
		return fmt.Errorf("checking for file at %s: %w", p, err)
	}
	if file != nil {
		return fmt.Errorf("%w: a file already exists at %s", dfs.ErrValidation, p)
	}
	return nil
}

// segments returns p and each of its ancestors, root first:
// "/a/b/c" yields "/a", "/a/b", "/a/b/c".
func segments(p string) []string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	result := make([]string, 0, len(parts))
	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		current += "/" + part
		result = append(result, current)
	}
	return result
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Compile-time check that SQLiteDatabase implements dfs.MetadataStore
var _ dfs.MetadataStore = (*SQLiteDatabase)(nil)
