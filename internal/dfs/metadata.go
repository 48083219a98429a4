package dfs

import (
	"time"

	"dfs-go/internal/model"
)

// MetadataStore provides the transactional catalog of users, directories,
// file records, replica assignments, shares and sessions.
// Find* methods return (nil, nil) when nothing matches.
type MetadataStore interface {
	// User operations

	// CreateUser inserts a new user. The email must be unused.
	CreateUser(username, email, passwordHash string) (*model.User, error)

	// FindUserByEmail returns the user registered with email.
	FindUserByEmail(email string) (*model.User, error)

	// FindUserByID returns the user with the given id.
	FindUserByID(id int64) (*model.User, error)

	// Session operations

	// CreateSession stores a session token for a user.
	CreateSession(token string, userID int64, expiresAt time.Time) error

	// FindUserBySession returns the user owning token if the session expires after now.
	FindUserBySession(token string, now time.Time) (*model.User, error)

	// DeleteSession removes a session token. Removing an unknown token is not an error.
	DeleteSession(token string) error

	// Directory operations

	// CreateDirectory creates path and every missing ancestor, one segment at a time.
	// Existing directories are reused. Returns the directory at path.
	CreateDirectory(path string, ownerID int64) (*model.Directory, error)

	// FindDirectoryByPath returns the owner's directory at path.
	FindDirectoryByPath(path string, ownerID int64) (*model.Directory, error)

	// FindChildDirectories returns the directories whose parent is the owner's directory at path.
	FindChildDirectories(path string, ownerID int64) ([]*model.Directory, error)

	// MoveDirectory rewrites the directory at oldPath and every descendant directory and
	// file path in a single transaction, creating missing ancestors of newPath.
	// The destination must be unused.
	MoveDirectory(oldPath, newPath string, ownerID int64) error

	// DeleteDirectory removes every descendant file record (with its replicas), every
	// descendant directory and the directory itself in a single transaction.
	DeleteDirectory(path string, ownerID int64) error

	// File operations

	// CreateFileRecord inserts a file record, creating missing ancestor directories,
	// and sets file.ID, file.DirectoryID and file.CreatedAt. The path must be unused.
	CreateFileRecord(file *model.FileRecord) error

	// FindFileByPath returns the file at path regardless of owner.
	FindFileByPath(path string) (*model.FileRecord, error)

	// FindFileByPathAndOwner returns the owner's file at path.
	FindFileByPathAndOwner(path string, ownerID int64) (*model.FileRecord, error)

	// FindFilesUnderDirectory returns every file below the owner's directory at path, at any depth.
	FindFilesUnderDirectory(path string, ownerID int64) ([]*model.FileRecord, error)

	// FindFilesInDirectory returns the files whose parent is the owner's directory at path.
	FindFilesInDirectory(path string, ownerID int64) ([]*model.FileRecord, error)

	// MoveFile changes the path of the owner's file at oldPath in a single transaction,
	// creating missing ancestors of newPath. The destination must be unused.
	MoveFile(oldPath, newPath string, ownerID int64) error

	// DeleteFile removes a file record and its replica assignment in a single transaction.
	DeleteFile(fileID int64) error

	// Replica operations

	// SaveReplicas records the ordered list of peers holding a file's bytes.
	SaveReplicas(fileID int64, peerIDs []string) error

	// FindReplicaPeerIDs returns the peers holding a file's bytes, in assignment order.
	FindReplicaPeerIDs(fileID int64) ([]string, error)

	// Share operations

	// CreateShare grants a user access to a file, replacing the permission of an existing grant.
	CreateShare(fileID, granteeID int64, permission model.Permission) error

	// DeleteShare revokes a user's access to a file. Revoking a missing grant is not an error.
	DeleteShare(fileID, granteeID int64) error

	// FindSharesForFile returns every grant on a file.
	FindSharesForFile(fileID int64) ([]*model.Share, error)

	// HasReadAccess reports whether userID owns fileID or holds a read or write share on it.
	HasReadAccess(userID, fileID int64) (bool, error)

	// Close closes the underlying store.
	Close() error
}
