package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MemorySet is the stored, still-encoded collection for one owner.
type MemorySet struct {
	OwnerID string
	Payload []byte
	SavedAt int64
}

// Load returns the encoded memory set for ownerID, or nil when none has been
// saved. It satisfies memory.Gateway.
func (db *DB) Load(ctx context.Context, ownerID string) ([]byte, error) {
	var payload []byte
	err := db.QueryRowContext(ctx,
		"SELECT payload FROM memory_sets WHERE owner_id = ?", ownerID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load memory set %s: %w", ownerID, err)
	}
	return payload, nil
}

// Save replaces the memory set for ownerID.
func (db *DB) Save(ctx context.Context, ownerID string, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO memory_sets (owner_id, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, ownerID, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save memory set %s: %w", ownerID, err)
	}
	return nil
}

// GetMemorySet returns the stored row for ownerID, or nil when absent.
func (db *DB) GetMemorySet(ownerID string) (*MemorySet, error) {
	var s MemorySet
	err := db.QueryRow(
		"SELECT owner_id, payload, saved_at FROM memory_sets WHERE owner_id = ?", ownerID,
	).Scan(&s.OwnerID, &s.Payload, &s.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory set: %w", err)
	}
	return &s, nil
}

// DeleteMemorySet removes the stored set for ownerID.
func (db *DB) DeleteMemorySet(ownerID string) error {
	if _, err := db.Exec("DELETE FROM memory_sets WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("delete memory set: %w", err)
	}
	return nil
}
