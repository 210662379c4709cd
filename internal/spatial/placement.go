package spatial

import "math"

// DefaultStandoff is how far in front of the camera a new memory is placed.
const DefaultStandoff float32 = 0.5

// DefaultPlacement is used when no pose has been observed yet: half a meter
// straight ahead of the world origin.
var DefaultPlacement = Vec3{0, 0, -0.5}

// PlacementPoint returns the world position for a new memory: the camera
// position pushed standoff meters along its forward axis. A nil pose yields
// DefaultPlacement.
func PlacementPoint(pose *Pose, standoff float32) Vec3 {
	if pose == nil {
		return DefaultPlacement
	}
	return pose.Position.Add(pose.Forward().Scale(standoff))
}

// HoverOffset is the cosmetic vertical bob applied to a marker elapsed time
// after the session started. Hit testing ignores it.
func HoverOffset(elapsedSeconds float64) Vec3 {
	const (
		amplitude = 0.01 // meters
		period    = 3.0  // seconds
	)
	return Vec3{Y: float32(amplitude * math.Sin(2*math.Pi*elapsedSeconds/period))}
}
