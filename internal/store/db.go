package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// DB is the waypoint database: registered users and one stored memory set
// per user.
type DB struct {
	*sql.DB
	Path string
}

// DefaultDBPath returns ~/.waypoint/waypoint.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".waypoint", "waypoint.db"), nil
}

// Open opens or creates the database file at path and brings its schema
// up to date.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path)
}

// OpenMemory opens a private in-memory database, for tests and runs that
// should leave nothing behind.
func OpenMemory() (*DB, error) {
	return open(memoryDSN)
}

func open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if dsn == memoryDSN {
		// Every pooled connection would get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	db := &DB{DB: sqlDB, Path: dsn}
	if err := db.setup(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) setup() error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	if db.Path != memoryDSN {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	if err := db.migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
