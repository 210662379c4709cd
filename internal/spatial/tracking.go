package spatial

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TrackingState is the coarse tracking quality reported by the tracker.
type TrackingState int

const (
	TrackingUnavailable TrackingState = iota
	TrackingLimited
	TrackingNormal
)

func (s TrackingState) String() string {
	switch s {
	case TrackingNormal:
		return "normal"
	case TrackingLimited:
		return "limited"
	default:
		return "unavailable"
	}
}

// ParseTrackingState is the inverse of TrackingState.String.
func ParseTrackingState(s string) (TrackingState, error) {
	switch s {
	case "normal":
		return TrackingNormal, nil
	case "limited":
		return TrackingLimited, nil
	case "unavailable", "":
		return TrackingUnavailable, nil
	}
	return TrackingUnavailable, fmt.Errorf("unknown tracking state %q", s)
}

// Common reasons attached to limited tracking.
const (
	ReasonInitializing         = "initializing"
	ReasonExcessiveMotion      = "excessive_motion"
	ReasonInsufficientFeatures = "insufficient_features"
	ReasonRelocalizing         = "relocalizing"
)

// Quality is the latest tracking-quality signal. Reason is only meaningful
// for TrackingLimited.
type Quality struct {
	State  TrackingState
	Reason string
}

func (q Quality) String() string {
	if q.State == TrackingLimited && q.Reason != "" {
		return fmt.Sprintf("limited(%s)", q.Reason)
	}
	return q.State.String()
}

func (q Quality) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		State  string `json:"state"`
		Reason string `json:"reason,omitempty"`
	}{q.State.String(), q.Reason})
}

func (q *Quality) UnmarshalJSON(data []byte) error {
	var raw struct {
		State  string `json:"state"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseTrackingState(raw.State)
	if err != nil {
		return err
	}
	q.State = st
	q.Reason = ""
	if st == TrackingLimited {
		q.Reason = raw.Reason
	}
	return nil
}

// Tracker holds the most recent pose and quality delivered by the tracking
// producer. It is safe for a producer goroutine to update while readers on
// other goroutines take snapshots. The last-known pose survives quality
// drops.
type Tracker struct {
	mu      sync.RWMutex
	pose    Pose
	hasPose bool
	quality Quality
	frames  uint64
}

// NewTracker returns a tracker with no pose and unavailable quality.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update records a new pose.
func (t *Tracker) Update(p Pose) {
	p.Orientation = p.Orientation.Normalize()
	t.mu.Lock()
	t.pose = p
	t.hasPose = true
	t.frames++
	t.mu.Unlock()
}

// SetQuality records a new tracking-quality signal.
func (t *Tracker) SetQuality(q Quality) {
	t.mu.Lock()
	t.quality = q
	t.mu.Unlock()
}

// Latest returns the last observed pose; ok is false until the first update.
func (t *Tracker) Latest() (p Pose, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pose, t.hasPose
}

// Quality returns the last observed tracking quality.
func (t *Tracker) Quality() Quality {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.quality
}

// Frames returns the number of poses received.
func (t *Tracker) Frames() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frames
}

// Reset forgets the pose, as after a tracking session restart.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.pose = Pose{}
	t.hasPose = false
	t.quality = Quality{}
	t.mu.Unlock()
}

// PlacementPoint computes where a memory created now would go, along with
// the quality the decision was made under.
func (t *Tracker) PlacementPoint(standoff float32) (Vec3, Quality) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.hasPose {
		return PlacementPoint(nil, standoff), t.quality
	}
	p := t.pose
	return PlacementPoint(&p, standoff), t.quality
}
