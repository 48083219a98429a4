package testutil

import (
	"testing"

	"dfs-go/internal/database"
	"dfs-go/internal/model"
)

// NewTestDatabase creates a new in-memory SQLite database with all migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, ":memory:")
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateUser registers a user with a placeholder password hash.
func CreateUser(t *testing.T, db *database.SQLiteDatabase, username, email string) *model.User {
	t.Helper()

	u, err := db.CreateUser(username, email, "not-a-real-hash")
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return u
}
