// Package memory owns the authoritative collection of spatial memories for
// the current user and its durable encoding.
package memory

import (
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/waypoint/internal/spatial"
)

// Size limits for user-supplied content.
const (
	MaxTextBytes  = 2000
	MaxPhotoBytes = 8 << 20 // 8MB, roughly a full-resolution JPEG
)

// Memory is a short text, optionally with a photo, pinned at a point in the
// session's world frame. Memories are never mutated after creation.
type Memory struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Photo     []byte       `json:"photo,omitempty"`
	Position  spatial.Vec3 `json:"position"`
	CreatedAt time.Time    `json:"created_at"`
	OwnerID   string       `json:"owner_id"`
}

// HasPhoto reports whether the memory carries a photo.
func (m Memory) HasPhoto() bool { return len(m.Photo) > 0 }

// ValidationError rejects input before any state changes.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ErrNoCurrentUser is returned by mutations made while nobody is logged in.
var ErrNoCurrentUser = errors.New("no current user")

// PersistenceError wraps a failed load or save against the gateway.
type PersistenceError struct {
	Op      string // "load" or "save"
	OwnerID string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s memories for %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
