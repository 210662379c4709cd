package spatial

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-5, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-5, "y")
	assert.InDelta(t, want.Z, got.Z, 1e-5, "z")
}

func TestPlacementPointIdentityPose(t *testing.T) {
	pose := Pose{Position: Vec3{}, Orientation: Identity}
	assertVec(t, Vec3{0, 0, -0.3}, PlacementPoint(&pose, 0.3))
}

func TestPlacementPointNoPose(t *testing.T) {
	assert.Equal(t, Vec3{0, 0, -0.5}, PlacementPoint(nil, 0.3))
	assert.Equal(t, DefaultPlacement, PlacementPoint(nil, DefaultStandoff))
}

func TestPlacementPointDeterministic(t *testing.T) {
	pose := Pose{
		Position:    Vec3{1.5, 0.2, -3},
		Orientation: AxisAngle(Vec3{0, 1, 0}, 0.7),
	}
	a := PlacementPoint(&pose, 0.4)
	b := PlacementPoint(&pose, 0.4)
	assert.Equal(t, a, b)
	assert.InDelta(t, 0.4, float64(a.Distance(pose.Position)), 1e-5)
}

func TestPlacementPointYawed(t *testing.T) {
	// Quarter turn to the left around +Y looks down -X.
	pose := Pose{
		Position:    Vec3{1, 1, 1},
		Orientation: AxisAngle(Vec3{0, 1, 0}, math.Pi/2),
	}
	assertVec(t, Vec3{0.5, 1, 1}, PlacementPoint(&pose, 0.5))
}

func TestPoseFromTransform(t *testing.T) {
	m := [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		1, 2, 3, 1,
	}
	p := PoseFromTransform(m)
	assertVec(t, Vec3{1, 2, 3}, p.Position)
	assertVec(t, Vec3{0, 0, -1}, p.Forward())
}

func TestPoseFromTransformMatchesQuaternion(t *testing.T) {
	for _, q := range []Quat{
		AxisAngle(Vec3{0, 1, 0}, 2.5),
		AxisAngle(Vec3{1, 0, 0}, -1.2),
		AxisAngle(Vec3{1, 1, 0}, math.Pi),
		AxisAngle(Vec3{0.3, -0.4, 0.8}, 0.9),
	} {
		right, up, back := q.Basis()
		m := [16]float32{
			right.X, right.Y, right.Z, 0,
			up.X, up.Y, up.Z, 0,
			back.X, back.Y, back.Z, 0,
			0, 0, 0, 1,
		}
		p := PoseFromTransform(m)
		assertVec(t, back.Neg(), p.Forward())
	}
}

func TestToCamera(t *testing.T) {
	pose := Pose{Position: Vec3{0, 1, 0}, Orientation: Identity}
	assertVec(t, Vec3{0.5, 0, -2}, pose.ToCamera(Vec3{0.5, 1, -2}))
}

func TestHoverOffsetPeriodic(t *testing.T) {
	assert.InDelta(t, 0, HoverOffset(0).Y, 1e-6)
	assert.InDelta(t, HoverOffset(0.75).Y, HoverOffset(3.75).Y, 1e-6)
	assert.InDelta(t, 0.01, HoverOffset(0.75).Y, 1e-6)
}

func TestTrackerKeepsLastPoseWhenUnavailable(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.Latest()
	require.False(t, ok)

	pt, q := tr.PlacementPoint(0.3)
	assert.Equal(t, DefaultPlacement, pt)
	assert.Equal(t, TrackingUnavailable, q.State)

	tr.Update(Pose{Position: Vec3{0, 0, 1}, Orientation: Identity})
	tr.SetQuality(Quality{State: TrackingNormal})
	tr.SetQuality(Quality{State: TrackingUnavailable})

	pt, q = tr.PlacementPoint(0.5)
	assert.Equal(t, TrackingUnavailable, q.State)
	assertVec(t, Vec3{0, 0, 0.5}, pt)
	assert.Equal(t, uint64(1), tr.Frames())

	tr.Reset()
	_, ok = tr.Latest()
	assert.False(t, ok)
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Update(Pose{Position: Vec3{X: float32(i)}, Orientation: Identity})
				tr.PlacementPoint(0.5)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, uint64(800), tr.Frames())
}

func TestQualityJSON(t *testing.T) {
	data, err := json.Marshal(Quality{State: TrackingLimited, Reason: ReasonExcessiveMotion})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"limited","reason":"excessive_motion"}`, string(data))

	var q Quality
	require.NoError(t, json.Unmarshal([]byte(`{"state":"normal","reason":"ignored"}`), &q))
	assert.Equal(t, Quality{State: TrackingNormal}, q)
	assert.Equal(t, "normal", q.String())

	assert.Error(t, json.Unmarshal([]byte(`{"state":"sideways"}`), &q))
	assert.Equal(t, "limited(relocalizing)", Quality{State: TrackingLimited, Reason: ReasonRelocalizing}.String())
}
