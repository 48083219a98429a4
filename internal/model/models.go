package model

import (
	"database/sql"
	"strings"
	"time"
)

// User is an account that owns a namespace rooted at /user{ID}.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeEmail returns the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Directory is a node of a user's directory tree.
type Directory struct {
	ID        int64
	Path      string        // Absolute path, e.g. /user1/docs
	OwnerID   int64         // Foreign key to User
	ParentID  sql.NullInt64 // Foreign key to parent Directory; NULL for the user root
	CreatedAt time.Time
}

// FileRecord is the metadata of a stored file. Its bytes live on storage peers,
// addressed by ID rather than by path.
type FileRecord struct {
	ID          int64
	Name        string // Last path segment
	Path        string
	Size        int64
	OwnerID     int64
	DirectoryID sql.NullInt64 // Foreign key to the parent Directory
	CreatedAt   time.Time
}

// Permission is the access level of a Share.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is one of the known permission levels.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Share grants a user other than the owner access to a single file.
type Share struct {
	FileID     int64
	GranteeID  int64
	Permission Permission
	CreatedAt  time.Time
}

// Session authenticates a user for a limited time.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// Operation is an audit record of a mutating command.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
}
