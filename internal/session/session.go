// Package session runs one tracking session: it owns the memory store, the
// anchor reconciler and the hit resolver, and serializes every operation on
// them through a single goroutine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/memory"
	"github.com/lazypower/waypoint/internal/metrics"
	"github.com/lazypower/waypoint/internal/scene"
	"github.com/lazypower/waypoint/internal/spatial"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrTrackingUnavailable is returned by Place when tracking is lost and
	// the session refuses to place blind.
	ErrTrackingUnavailable = errors.New("tracking unavailable")
)

// Config wires a Session to its collaborators. Tracker, Persister,
// Renderer and HitTester are required.
type Config struct {
	Tracker   *spatial.Tracker
	Persister memory.Persistence
	Renderer  scene.Renderer
	HitTester scene.HitTester
	Logger    *zap.Logger
	Metrics   *metrics.Collector

	// Standoff is the distance in front of the camera new memories are
	// placed at. Zero means spatial.DefaultStandoff.
	Standoff float32
	// RefuseWhenUnavailable makes Place fail instead of falling back to the
	// last known pose or the default placement.
	RefuseWhenUnavailable bool
}

// Status summarizes the session for display.
type Status struct {
	UserID   string          `json:"user_id"`
	LoggedIn bool            `json:"logged_in"`
	Memories int             `json:"memories"`
	Anchors  int             `json:"anchors"`
	Tracking spatial.Quality `json:"tracking"`
	HasPose  bool            `json:"has_pose"`
	Pose     *spatial.Pose   `json:"pose,omitempty"`
	Frames   uint64          `json:"frames"`
	Standoff float32         `json:"standoff"`
}

// Session is safe for concurrent use. The tracker is written directly by
// pose producers; everything else runs on the session goroutine.
type Session struct {
	tracker  *spatial.Tracker
	persist  memory.Persistence
	store    *memory.Store
	anchors  *scene.Reconciler
	resolver *scene.HitResolver
	log      *zap.Logger

	standoff float32
	refuse   bool
	started  time.Time
	now      func() time.Time

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New starts a session with no current user.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	standoff := cfg.Standoff
	if standoff <= 0 {
		standoff = spatial.DefaultStandoff
	}

	s := &Session{
		tracker:  cfg.Tracker,
		persist:  cfg.Persister,
		store:    memory.NewStore(cfg.Persister, logger, cfg.Metrics),
		anchors:  scene.NewReconciler(cfg.Renderer, logger, cfg.Metrics),
		resolver: scene.NewHitResolver(cfg.HitTester, cfg.Metrics),
		log:      logger.Named("session"),
		standoff: standoff,
		refuse:   cfg.RefuseWhenUnavailable,
		now:      time.Now,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.started = s.now()
	s.store.OnChange(func(ms []memory.Memory) {
		s.anchors.Reconcile(ms)
	})

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the session goroutine and waits for it. Once fn has been
// accepted it always runs to completion, so results it writes are safe to
// read after do returns nil.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	op := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.ops <- op:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Login makes userID the current user and reloads their memories. Anchors
// for the previous user are torn down before the new user's are built.
//
// The reload is detached from ctx: a failed load leaves the store empty and
// the next mutation would save that over the user's data.
func (s *Session) Login(ctx context.Context, userID string) error {
	reload := context.WithoutCancel(ctx)
	return s.do(ctx, func() {
		s.store.SetCurrentUser(reload, userID)
	})
}

// Logout clears the current user and every anchor.
func (s *Session) Logout(ctx context.Context) error {
	return s.do(ctx, func() {
		s.store.SetCurrentUser(context.WithoutCancel(ctx), "")
	})
}

// Place creates a memory at the standoff point in front of the latest pose.
func (s *Session) Place(ctx context.Context, text string, photo []byte) (memory.Memory, error) {
	pos, q := s.tracker.PlacementPoint(s.standoff)
	if q.State == spatial.TrackingUnavailable && s.refuse {
		return memory.Memory{}, ErrTrackingUnavailable
	}
	if q.State != spatial.TrackingNormal {
		s.log.Debug("placing with degraded tracking", zap.Stringer("tracking", q), zap.Stringer("position", pos))
	}

	var (
		m   memory.Memory
		err error
	)
	if derr := s.do(ctx, func() {
		m, err = s.store.Add(text, photo, pos)
	}); derr != nil {
		return memory.Memory{}, derr
	}
	return m, err
}

// Remove deletes a memory by id. ok is false when no such memory exists.
func (s *Session) Remove(ctx context.Context, id string) (ok bool, err error) {
	err = s.do(ctx, func() {
		ok = s.store.Remove(id)
	})
	return ok, err
}

// Clear deletes every memory of the current user.
func (s *Session) Clear(ctx context.Context) (n int, err error) {
	err = s.do(ctx, func() {
		n = s.store.ClearAll()
	})
	return n, err
}

// Memories returns the current user's memories in insertion order.
func (s *Session) Memories(ctx context.Context) (ms []memory.Memory, err error) {
	err = s.do(ctx, func() {
		ms = s.store.All()
	})
	return ms, err
}

// Memory returns one memory by id.
func (s *Session) Memory(ctx context.Context, id string) (m memory.Memory, ok bool, err error) {
	err = s.do(ctx, func() {
		m, ok = s.store.Get(id)
	})
	return m, ok, err
}

// Nearby returns the first memory within radius of position.
func (s *Session) Nearby(ctx context.Context, position spatial.Vec3, radius float32) (m memory.Memory, ok bool, err error) {
	err = s.do(ctx, func() {
		m, ok = s.store.Nearby(position, radius)
	})
	return m, ok, err
}

// Tap resolves a screen point to the memory under it.
func (s *Session) Tap(ctx context.Context, p scene.Point) (m memory.Memory, ok bool, err error) {
	err = s.do(ctx, func() {
		m, ok = s.resolver.Resolve(p)
	})
	if err == nil {
		s.log.Debug("tap", zap.Float32("x", p.X), zap.Float32("y", p.Y), zap.Bool("hit", ok), zap.String("memory_id", m.ID))
	}
	return m, ok, err
}

// UpdatePose records a new camera pose.
func (s *Session) UpdatePose(p spatial.Pose) {
	s.tracker.Update(p)
}

// UpdateQuality records a tracking quality change.
func (s *Session) UpdateQuality(q spatial.Quality) {
	prev := s.tracker.Quality()
	s.tracker.SetQuality(q)
	if prev != q {
		s.log.Info("tracking quality changed", zap.Stringer("from", prev), zap.Stringer("to", q))
	}
}

// ResetTracking restarts the tracking session. The pose is forgotten and
// every anchor is rebuilt from the store.
func (s *Session) ResetTracking(ctx context.Context) (rebuilt int, err error) {
	err = s.do(ctx, func() {
		s.tracker.Reset()
		s.anchors.Reset()
		rebuilt = len(s.anchors.Reconcile(s.store.All()).Created)
	})
	if err == nil {
		s.log.Info("tracking reset", zap.Int("anchors", rebuilt))
	}
	return rebuilt, err
}

// Status reports the current user, counts and tracking state.
func (s *Session) Status(ctx context.Context) (st Status, err error) {
	err = s.do(ctx, func() {
		st.UserID = s.store.Owner()
		st.LoggedIn = st.UserID != ""
		st.Memories = s.store.Len()
		st.Anchors = s.anchors.Len()
	})
	if err != nil {
		return Status{}, err
	}
	st.Tracking = s.tracker.Quality()
	if p, ok := s.tracker.Latest(); ok {
		st.HasPose = true
		st.Pose = &p
	}
	st.Frames = s.tracker.Frames()
	st.Standoff = s.standoff
	return st, nil
}

// Scene lists the live anchors as they appear now, hover included.
func (s *Session) Scene(ctx context.Context) (views []scene.AnchorView, err error) {
	err = s.do(ctx, func() {
		views = s.anchors.Snapshot(s.now().Sub(s.started).Seconds())
	})
	return views, err
}

type flusher interface {
	Flush(ctx context.Context) error
}

// Close stops the session goroutine and waits for queued saves to land.
// It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if f, ok := s.persist.(flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}
