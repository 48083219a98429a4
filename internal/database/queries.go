package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dfs-go/internal/model"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// queries holds the statements of the metadata schema. Methods that look up a
// single row return (nil, nil) when it does not exist.
type queries struct {
	db DBTX
}

func newQueries(db DBTX) *queries {
	return &queries{db: db}
}

func (q *queries) withTx(tx *sql.Tx) *queries {
	return &queries{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Users

const userColumns = `id, username, email, password_hash, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q *queries) insertUser(ctx context.Context, username, email, passwordHash string, createdAt time.Time) (int64, error) {
	return q.insert(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, createdAt)
}

func (q *queries) getUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return optional(scanUser(row))
}

func (q *queries) getUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return optional(scanUser(row))
}

// Sessions

func (q *queries) insertSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt)
	return err
}

func (q *queries) getUserBySession(ctx context.Context, token string, now time.Time) (*model.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.email, u.password_hash, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, now)
	return optional(scanUser(row))
}

func (q *queries) deleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// Directories

const directoryColumns = `id, path, owner_id, parent_id, created_at`

func scanDirectory(row rowScanner) (*model.Directory, error) {
	var d model.Directory
	if err := row.Scan(&d.ID, &d.Path, &d.OwnerID, &d.ParentID, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (q *queries) getDirectoryByPath(ctx context.Context, ownerID int64, path string) (*model.Directory, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+directoryColumns+` FROM directories WHERE owner_id = ? AND path = ?`,
		ownerID, path)
	return optional(scanDirectory(row))
}

func (q *queries) insertDirectory(ctx context.Context, ownerID int64, path string, parentID sql.NullInt64, createdAt time.Time) (int64, error) {
	return q.insert(ctx,
		`INSERT INTO directories (path, owner_id, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		path, ownerID, parentID, createdAt)
}

func (q *queries) getDirectoryByID(ctx context.Context, id int64) (*model.Directory, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+directoryColumns+` FROM directories WHERE id = ?`, id)
	return optional(scanDirectory(row))
}

func (q *queries) getChildDirectories(ctx context.Context, parentID int64) ([]*model.Directory, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+directoryColumns+` FROM directories WHERE parent_id = ? ORDER BY path`,
		parentID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanDirectory)
}

func (q *queries) updateDirectory(ctx context.Context, id int64, path string, parentID sql.NullInt64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE directories SET path = ?, parent_id = ? WHERE id = ?`,
		path, parentID, id)
	return err
}

// rewriteDirectoryPrefix replaces oldPrefix with newPrefix in the path of every
// directory of the owner whose path starts with oldPrefix.
func (q *queries) rewriteDirectoryPrefix(ctx context.Context, ownerID int64, oldPrefix, newPrefix string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE directories SET path = ?2 || substr(path, length(?1) + 1)
		 WHERE owner_id = ?3 AND substr(path, 1, length(?1)) = ?1`,
		oldPrefix, newPrefix, ownerID)
	return err
}

func (q *queries) deleteDirectoriesWithPrefix(ctx context.Context, ownerID int64, prefix string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM directories WHERE owner_id = ?2 AND substr(path, 1, length(?1)) = ?1`,
		prefix, ownerID)
	return err
}

func (q *queries) deleteDirectoryByID(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM directories WHERE id = ?`, id)
	return err
}

// Files

const fileColumns = `id, name, path, size, owner_id, directory_id, created_at`

func scanFile(row rowScanner) (*model.FileRecord, error) {
	var f model.FileRecord
	if err := row.Scan(&f.ID, &f.Name, &f.Path, &f.Size, &f.OwnerID, &f.DirectoryID, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (q *queries) insertFile(ctx context.Context, f *model.FileRecord) (int64, error) {
	return q.insert(ctx,
		`INSERT INTO files (name, path, size, owner_id, directory_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.Name, f.Path, f.Size, f.OwnerID, f.DirectoryID, f.CreatedAt)
}

func (q *queries) getFileByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	return optional(scanFile(row))
}

func (q *queries) getFileByPath(ctx context.Context, path string) (*model.FileRecord, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE path = ? ORDER BY id LIMIT 1`, path)
	return optional(scanFile(row))
}

func (q *queries) getFileByPathAndOwner(ctx context.Context, ownerID int64, path string) (*model.FileRecord, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE owner_id = ? AND path = ?`, ownerID, path)
	return optional(scanFile(row))
}

func (q *queries) getFilesWithPrefix(ctx context.Context, ownerID int64, prefix string) ([]*model.FileRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE owner_id = ?2 AND substr(path, 1, length(?1)) = ?1 ORDER BY path`,
		prefix, ownerID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFile)
}

func (q *queries) getFilesByDirectoryID(ctx context.Context, directoryID int64) ([]*model.FileRecord, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE directory_id = ? ORDER BY path`, directoryID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFile)
}

func (q *queries) updateFileLocation(ctx context.Context, id int64, name, path string, directoryID sql.NullInt64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE files SET name = ?, path = ?, directory_id = ? WHERE id = ?`,
		name, path, directoryID, id)
	return err
}

func (q *queries) rewriteFilePrefix(ctx context.Context, ownerID int64, oldPrefix, newPrefix string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE files SET path = ?2 || substr(path, length(?1) + 1)
		 WHERE owner_id = ?3 AND substr(path, 1, length(?1)) = ?1`,
		oldPrefix, newPrefix, ownerID)
	return err
}

func (q *queries) deleteFileByID(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	return err
}

func (q *queries) deleteFilesWithPrefix(ctx context.Context, ownerID int64, prefix string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM files WHERE owner_id = ?2 AND substr(path, 1, length(?1)) = ?1`,
		prefix, ownerID)
	return err
}

// Replicas

func (q *queries) insertReplica(ctx context.Context, fileID int64, peerID string, position int) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO file_replicas (file_id, peer_id, position) VALUES (?, ?, ?)`,
		fileID, peerID, position)
	return err
}

func (q *queries) getReplicaPeerIDs(ctx context.Context, fileID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT peer_id FROM file_replicas WHERE file_id = ? ORDER BY position`, fileID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row rowScanner) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
}

func (q *queries) deleteReplicas(ctx context.Context, fileID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM file_replicas WHERE file_id = ?`, fileID)
	return err
}

func (q *queries) deleteReplicasWithPrefix(ctx context.Context, ownerID int64, prefix string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM file_replicas WHERE file_id IN (
		   SELECT id FROM files WHERE owner_id = ?2 AND substr(path, 1, length(?1)) = ?1)`,
		prefix, ownerID)
	return err
}

// Shares

func (q *queries) upsertShare(ctx context.Context, fileID, granteeID int64, permission model.Permission, createdAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO file_shares (file_id, grantee_id, permission, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (file_id, grantee_id) DO UPDATE SET permission = excluded.permission`,
		fileID, granteeID, string(permission), createdAt)
	return err
}

func (q *queries) deleteShare(ctx context.Context, fileID, granteeID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM file_shares WHERE file_id = ? AND grantee_id = ?`, fileID, granteeID)
	return err
}

func (q *queries) getSharesForFile(ctx context.Context, fileID int64) ([]*model.Share, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT file_id, grantee_id, permission, created_at FROM file_shares
		 WHERE file_id = ? ORDER BY grantee_id`, fileID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row rowScanner) (*model.Share, error) {
		var s model.Share
		var permission string
		if err := row.Scan(&s.FileID, &s.GranteeID, &permission, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Permission = model.Permission(permission)
		return &s, nil
	})
}

func (q *queries) hasReadAccess(ctx context.Context, userID, fileID int64) (bool, error) {
	var allowed bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM files WHERE id = ?2 AND owner_id = ?1)
		     OR EXISTS (SELECT 1 FROM file_shares
		                WHERE file_id = ?2 AND grantee_id = ?1 AND permission IN ('read', 'write'))`,
		userID, fileID).Scan(&allowed)
	return allowed, err
}

// Operations

const operationColumns = `id, operation, parameters, started_at, finished_at, status`

func scanOperation(row rowScanner) (*model.Operation, error) {
	var op model.Operation
	if err := row.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
		return nil, err
	}
	return &op, nil
}

func (q *queries) insertOperation(ctx context.Context, operation, parameters string, startedAt time.Time) (int64, error) {
	return q.insert(ctx,
		`INSERT INTO operations (operation, parameters, started_at) VALUES (?, ?, ?)`,
		operation, parameters, startedAt)
}

func (q *queries) getOperationByID(ctx context.Context, id int64) (*model.Operation, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)
	return optional(scanOperation(row))
}

func (q *queries) finishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		finishedAt, status, id)
	return err
}

func (q *queries) getOperations(ctx context.Context, limit int) ([]*model.Operation, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOperation)
}

func (q *queries) getMaxOperationID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id)
	return id, err
}

// insert runs an INSERT and returns the id of the new row.
func (q *queries) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// optional maps sql.ErrNoRows to a nil result.
func optional[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// collect scans every row and closes rows.
func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
