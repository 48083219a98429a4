package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"users", "sessions", "directories", "files", "file_replicas", "file_shares", "operations", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if !errors.Is(err, ErrNoVersion) {
		t.Errorf("CheckDBMigrationStatus() error = %v, want %v", err, ErrNoVersion)
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	db := openTestDB(t)

	st, err := GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Current != 0 {
		t.Errorf("Current = %d, want 0 before migrating", st.Current)
	}
	if st.Latest == 0 {
		t.Error("Latest = 0, want at least one embedded migration")
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	st, err = GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Current != st.Latest {
		t.Errorf("Current = %d, want %d", st.Current, st.Latest)
	}
	if st.Dirty {
		t.Error("Dirty = true, want false")
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// A replica of a file that does not exist must be rejected.
	_, err := db.Exec(`INSERT INTO file_replicas (file_id, peer_id, position) VALUES (999, 'node1', 0)`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_PathUniquePerOwner(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := "INSERT INTO directories (path, owner_id, created_at) VALUES (?, ?, datetime('now'))"
	if _, err := db.Exec(insert, "/user1/docs", 1); err != nil {
		t.Fatalf("Failed to insert first directory: %v", err)
	}
	if _, err := db.Exec(insert, "/user1/docs", 1); err == nil {
		t.Error("Expected unique constraint violation for duplicate path, but insert succeeded")
	}
	if _, err := db.Exec(insert, "/user1/docs", 2); err != nil {
		t.Errorf("Same path for another owner should be allowed: %v", err)
	}
}

func TestSchema_SharePermissionCheck(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	mustExec(t, db, "INSERT INTO users (id, username, email, password_hash, created_at) VALUES (2, 'bob', 'bob@example.com', 'x', datetime('now'))")
	mustExec(t, db, "INSERT INTO files (id, name, path, size, owner_id, created_at) VALUES (1, 'a.txt', '/user1/a.txt', 1, 1, datetime('now'))")

	_, err := db.Exec("INSERT INTO file_shares (file_id, grantee_id, permission, created_at) VALUES (1, 2, 'admin', datetime('now'))")
	if err == nil {
		t.Error("Expected check constraint violation for unknown permission, but insert succeeded")
	}
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Exec(%q) failed: %v", query, err)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	return db
}
