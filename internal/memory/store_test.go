package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/waypoint/internal/spatial"
)

func testStore(t *testing.T) (*Store, *Persister, *MapGateway) {
	t.Helper()
	gw := NewMapGateway()
	p := NewPersister(gw, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Close(ctx)
	})
	return NewStore(p, nil, nil), p, gw
}

func flush(t *testing.T, p *Persister) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Flush(ctx))
}

func storedMemories(t *testing.T, gw *MapGateway, owner string) []Memory {
	t.Helper()
	data, err := gw.Load(context.Background(), owner)
	require.NoError(t, err)
	if data == nil {
		return nil
	}
	_, mems, err := Decode(data)
	require.NoError(t, err)
	return mems
}

func TestAddThenAll(t *testing.T) {
	s, p, gw := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")

	m, err := s.Add("  hello  ", nil, spatial.Vec3{Z: -0.5})
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "hello", all[0].Text)
	assert.Equal(t, m.ID, all[0].ID)
	assert.Equal(t, "alice", all[0].OwnerID)
	assert.False(t, all[0].HasPhoto())
	assert.NotEmpty(t, all[0].ID)

	flush(t, p)
	stored := storedMemories(t, gw, "alice")
	require.Len(t, stored, 1)
	assert.Equal(t, m.ID, stored[0].ID)
}

func TestAddEmptyTextIsValidationError(t *testing.T) {
	s, _, _ := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")
	_, err := s.Add("first", nil, spatial.Vec3{})
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Add(text, nil, spatial.Vec3{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "text %q: got %v", text, err)
		assert.Equal(t, "text", verr.Field)
	}
	assert.Equal(t, 1, s.Len())
}

func TestAddLimits(t *testing.T) {
	s, _, _ := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")

	_, err := s.Add(strings.Repeat("a", MaxTextBytes+1), nil, spatial.Vec3{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "text", verr.Field)

	_, err = s.Add("big", make([]byte, MaxPhotoBytes+1), spatial.Vec3{})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "photo", verr.Field)
	assert.Zero(t, s.Len())
}

func TestAddWithoutUser(t *testing.T) {
	s, _, _ := testStore(t)
	_, err := s.Add("hello", nil, spatial.Vec3{})
	assert.ErrorIs(t, err, ErrNoCurrentUser)
	assert.Zero(t, s.Len())
}

func TestAddCopiesPhoto(t *testing.T) {
	s, _, _ := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")
	photo := []byte{1, 2, 3}
	m, err := s.Add("pic", photo, spatial.Vec3{})
	require.NoError(t, err)
	photo[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, m.Photo)
	assert.True(t, m.HasPhoto())
}

func TestRemove(t *testing.T) {
	s, p, gw := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")
	a, _ := s.Add("a", nil, spatial.Vec3{})
	b, _ := s.Add("b", nil, spatial.Vec3{})
	c, _ := s.Add("c", nil, spatial.Vec3{})

	before := s.All()
	assert.True(t, s.Remove(b.ID))
	assert.False(t, s.Remove(b.ID))
	assert.False(t, s.Remove("nope"))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, c.ID, all[1].ID)
	assert.Len(t, before, 3, "earlier snapshots are not affected")

	flush(t, p)
	assert.Len(t, storedMemories(t, gw, "alice"), 2)
}

func TestClearAll(t *testing.T) {
	s, p, gw := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")
	s.Add("a", nil, spatial.Vec3{})
	s.Add("b", nil, spatial.Vec3{})

	assert.Equal(t, 2, s.ClearAll())
	assert.Empty(t, s.All())

	flush(t, p)
	assert.Empty(t, storedMemories(t, gw, "alice"))
}

func TestSetCurrentUserIsolation(t *testing.T) {
	s, p, gw := testStore(t)
	ctx := context.Background()

	s.SetCurrentUser(ctx, "A")
	m, err := s.Add("for A", nil, spatial.Vec3{})
	require.NoError(t, err)
	s.SetCurrentUser(ctx, "B")

	_, ok := s.Get(m.ID)
	assert.False(t, ok)
	assert.Empty(t, s.All())
	assert.Equal(t, "B", s.Owner())

	flush(t, p)
	stored := storedMemories(t, gw, "A")
	require.Len(t, stored, 1)
	assert.Equal(t, "for A", stored[0].Text)

	s.SetCurrentUser(ctx, "A")
	require.Len(t, s.All(), 1)
}

func TestSetCurrentUserReadsQueuedSave(t *testing.T) {
	gw := newGatedGateway()
	p := NewPersister(gw, nil, nil)
	defer p.Close(context.Background())
	s := NewStore(p, nil, nil)
	ctx := context.Background()

	s.SetCurrentUser(ctx, "A")
	s.Add("one", nil, spatial.Vec3{})
	<-gw.started // first save is now blocked in the gateway
	s.Add("two", nil, spatial.Vec3{})
	s.SetCurrentUser(ctx, "B")
	s.SetCurrentUser(ctx, "A")

	assert.Len(t, s.All(), 2, "reload sees the queued snapshot, not the stale gateway")
	close(gw.release)
	flush(t, p)
}

func TestSetCurrentUserCorruptData(t *testing.T) {
	s, _, gw := testStore(t)
	gw.Put("alice", []byte("{{{"))
	s.SetCurrentUser(context.Background(), "alice")
	assert.Empty(t, s.All())
	assert.Equal(t, "alice", s.Owner())
}

func TestSetCurrentUserForeignOwner(t *testing.T) {
	s, _, gw := testStore(t)
	data, err := Encode("bob", fixtureMemories())
	require.NoError(t, err)
	gw.Put("alice", data)
	s.SetCurrentUser(context.Background(), "alice")
	assert.Empty(t, s.All())
}

func TestSetCurrentUserLoadError(t *testing.T) {
	s, _, gw := testStore(t)
	gw.LoadErr = errors.New("disk gone")
	s.SetCurrentUser(context.Background(), "alice")
	assert.Empty(t, s.All())
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	s, p, gw := testStore(t)
	gw.SaveErr = errors.New("read-only")
	s.SetCurrentUser(context.Background(), "alice")
	_, err := s.Add("kept", nil, spatial.Vec3{})
	require.NoError(t, err)
	flush(t, p)
	assert.Equal(t, 1, s.Len())
	assert.Zero(t, gw.Saves())
}

func TestNearby(t *testing.T) {
	s, _, _ := testStore(t)
	s.SetCurrentUser(context.Background(), "alice")
	s.Add("far", nil, spatial.Vec3{X: 5})
	near, _ := s.Add("near", nil, spatial.Vec3{X: 0.2})

	got, ok := s.Nearby(spatial.Vec3{}, 0)
	require.True(t, ok)
	assert.Equal(t, near.ID, got.ID)

	_, ok = s.Nearby(spatial.Vec3{Y: 10}, 1)
	assert.False(t, ok)
}

func TestOnChange(t *testing.T) {
	s, _, _ := testStore(t)
	var seen []int
	s.OnChange(func(m []Memory) { seen = append(seen, len(m)) })

	s.SetCurrentUser(context.Background(), "alice")
	a, _ := s.Add("a", nil, spatial.Vec3{})
	s.Add("", nil, spatial.Vec3{})
	s.Remove("missing")
	s.Remove(a.ID)
	s.ClearAll()

	assert.Equal(t, []int{0, 1, 0, 0}, seen)
}
