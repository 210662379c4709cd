package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/metrics"
	"github.com/lazypower/waypoint/internal/spatial"
)

// DefaultNearbyRadius is the radius Nearby uses when given a non-positive one.
const DefaultNearbyRadius float32 = 0.5

// Persistence is the part of Persister the Store depends on.
type Persistence interface {
	Submit(ownerID string, data []byte)
	Load(ctx context.Context, ownerID string) ([]byte, error)
}

// ChangeFunc observes the collection after every mutation or reload.
type ChangeFunc func(memories []Memory)

// Store is the ordered memory collection of the current user. It is not safe
// for concurrent use: a single owner goroutine drives it.
type Store struct {
	persist   Persistence
	log       *zap.Logger
	metrics   *metrics.Collector
	listeners []ChangeFunc

	owner    string
	memories []Memory

	now   func() time.Time
	newID func() string
}

// NewStore returns a logged-out store backed by p.
func NewStore(p Persistence, logger *zap.Logger, m *metrics.Collector) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		persist: p,
		log:     logger.Named("memory"),
		metrics: m,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// OnChange registers fn to be called after each mutation and reload.
func (s *Store) OnChange(fn ChangeFunc) {
	s.listeners = append(s.listeners, fn)
}

// Owner returns the current user id, or "" when logged out.
func (s *Store) Owner() string { return s.owner }

// Add creates a memory for the current user at position and persists the
// collection. Text is trimmed; empty text is a ValidationError and leaves
// the collection untouched.
func (s *Store) Add(text string, photo []byte, position spatial.Vec3) (Memory, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Memory{}, &ValidationError{Field: "text", Message: "must not be empty"}
	}
	if len(text) > MaxTextBytes {
		return Memory{}, &ValidationError{Field: "text", Message: "too long"}
	}
	if len(photo) > MaxPhotoBytes {
		return Memory{}, &ValidationError{Field: "photo", Message: "too large"}
	}
	if s.owner == "" {
		return Memory{}, ErrNoCurrentUser
	}

	m := Memory{
		ID:        s.newID(),
		Text:      text,
		Position:  position,
		CreatedAt: s.now().UTC(),
		OwnerID:   s.owner,
	}
	if len(photo) > 0 {
		m.Photo = append([]byte(nil), photo...)
	}
	s.memories = append(s.memories, m)
	s.metrics.MemoryAdded()

	s.log.Info("memory added",
		zap.String("id", m.ID),
		zap.String("owner_id", m.OwnerID),
		zap.Bool("photo", m.HasPhoto()),
		zap.Stringer("position", m.Position))

	s.changed()
	return m, nil
}

// Remove deletes the memory with id. Removing an unknown id is a no-op and
// returns false.
func (s *Store) Remove(id string) bool {
	for i, m := range s.memories {
		if m.ID != id {
			continue
		}
		s.memories = append(s.memories[:i:i], s.memories[i+1:]...)
		s.metrics.MemoriesDropped(1)
		s.log.Info("memory removed", zap.String("id", id), zap.String("owner_id", s.owner))
		s.changed()
		return true
	}
	return false
}

// ClearAll empties the current user's collection.
func (s *Store) ClearAll() int {
	n := len(s.memories)
	s.memories = nil
	s.metrics.MemoriesDropped(n)
	s.log.Info("memories cleared", zap.String("owner_id", s.owner), zap.Int("count", n))
	s.changed()
	return n
}

// SetCurrentUser replaces the collection with ownerID's stored memories.
// Missing or unreadable data yields an empty collection. An empty ownerID
// logs out.
func (s *Store) SetCurrentUser(ctx context.Context, ownerID string) {
	s.owner = ownerID
	s.memories = nil

	if ownerID != "" {
		s.memories = s.load(ctx, ownerID)
	}
	s.log.Info("current user set", zap.String("owner_id", ownerID), zap.Int("memories", len(s.memories)))
	s.notify()
}

func (s *Store) load(ctx context.Context, ownerID string) []Memory {
	data, err := s.persist.Load(ctx, ownerID)
	if err != nil {
		s.log.Error("load memories failed, starting empty", zap.String("owner_id", ownerID), zap.Error(err))
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	storedOwner, memories, err := Decode(data)
	if err != nil {
		s.log.Warn("stored memories unreadable, starting empty", zap.String("owner_id", ownerID), zap.Error(err))
		return nil
	}
	if storedOwner != ownerID {
		s.log.Warn("stored memories belong to another owner, starting empty",
			zap.String("owner_id", ownerID), zap.String("stored_owner", storedOwner))
		return nil
	}
	return memories
}

// All returns a copy of the collection in insertion order.
func (s *Store) All() []Memory {
	out := make([]Memory, len(s.memories))
	copy(out, s.memories)
	return out
}

// Len returns the number of memories.
func (s *Store) Len() int { return len(s.memories) }

// Get returns the memory with id.
func (s *Store) Get(id string) (Memory, bool) {
	for _, m := range s.memories {
		if m.ID == id {
			return m, true
		}
	}
	return Memory{}, false
}

// Nearby returns the first memory, in insertion order, within radius meters
// of position.
func (s *Store) Nearby(position spatial.Vec3, radius float32) (Memory, bool) {
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}
	for _, m := range s.memories {
		if m.Position.Distance(position) <= radius {
			return m, true
		}
	}
	return Memory{}, false
}

// changed persists the current collection and notifies listeners.
func (s *Store) changed() {
	if s.owner != "" {
		data, err := Encode(s.owner, s.memories)
		if err != nil {
			s.log.Error("encode memories failed, not persisted", zap.String("owner_id", s.owner), zap.Error(err))
		} else {
			s.persist.Submit(s.owner, data)
		}
	}
	s.notify()
}

func (s *Store) notify() {
	if len(s.listeners) == 0 {
		return
	}
	snapshot := s.All()
	for _, fn := range s.listeners {
		fn(snapshot)
	}
}
