package memory

import (
	"context"
	"sync"
)

// Gateway is the durable key->bytes store memory sets are saved to, keyed by
// owner id. Load returns (nil, nil) when nothing has been stored for owner.
type Gateway interface {
	Load(ctx context.Context, ownerID string) ([]byte, error)
	Save(ctx context.Context, ownerID string, data []byte) error
}

// MapGateway is an in-process Gateway. It is used for tests and for running
// without a database.
type MapGateway struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int

	// SaveErr, when set, is returned by every Save.
	SaveErr error
	// LoadErr, when set, is returned by every Load.
	LoadErr error
}

// NewMapGateway returns an empty MapGateway.
func NewMapGateway() *MapGateway {
	return &MapGateway{data: make(map[string][]byte)}
}

func (g *MapGateway) Load(ctx context.Context, ownerID string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.LoadErr != nil {
		return nil, g.LoadErr
	}
	data, ok := g.data[ownerID]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (g *MapGateway) Save(ctx context.Context, ownerID string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SaveErr != nil {
		return g.SaveErr
	}
	g.data[ownerID] = append([]byte(nil), data...)
	g.saves++
	return nil
}

// Put stores raw bytes for owner, bypassing encoding.
func (g *MapGateway) Put(ownerID string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.data[ownerID] = data
}

// Saves returns the number of successful saves.
func (g *MapGateway) Saves() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.saves
}
