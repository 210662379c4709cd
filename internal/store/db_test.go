package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "users", "memory_sets"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestUsersConstraints(t *testing.T) {
	db := testDB(t)

	_, err := db.Exec(`INSERT INTO users (id, username, email, created_at) VALUES ('u1', 'alice', 'a@x.io', 1000)`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	_, err = db.Exec(`INSERT INTO users (id, username, email, created_at) VALUES ('u2', '', 'b@x.io', 1000)`)
	if err == nil {
		t.Error("expected error for empty username, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion after re-migrate = %d, want %d", v, len(migrations))
	}
}

func TestOpenFile(t *testing.T) {
	path := t.TempDir() + "/nested/waypoint.db"
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestReopenFileKeepsData(t *testing.T) {
	path := t.TempDir() + "/waypoint.db"
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.CreateUser("alice", "alice@example.com"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if db.Path != path {
		t.Errorf("Path = %q, want %q", db.Path, path)
	}
	if _, err := db.GetUserByName("alice"); err != nil {
		t.Errorf("GetUserByName after reopen: %v", err)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db := testDB(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
