package spatial

import "math"

// Quat is a rotation quaternion. The zero value is not a valid rotation;
// use Identity.
type Quat struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// Identity is the no-rotation quaternion.
var Identity = Quat{W: 1}

// AxisAngle returns the rotation of angle radians around axis.
func AxisAngle(axis Vec3, angle float64) Quat {
	a := axis.Normalize()
	s := float32(math.Sin(angle / 2))
	return Quat{X: a.X * s, Y: a.Y * s, Z: a.Z * s, W: float32(math.Cos(angle / 2))}
}

// Normalize returns q scaled to unit length. A zero quaternion becomes Identity.
func (q Quat) Normalize() Quat {
	n := float32(math.Sqrt(float64(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)))
	if n == 0 {
		return Identity
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Basis returns the columns of the rotation matrix for q: right, up and
// back (the third basis axis).
func (q Quat) Basis() (right, up, back Vec3) {
	q = q.Normalize()
	x, y, z, w := q.X, q.Y, q.Z, q.W
	right = Vec3{1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y)}
	up = Vec3{2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x)}
	back = Vec3{2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y)}
	return right, up, back
}

// Pose is a 6-DoF camera pose in the session's world frame.
type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// Forward is the direction the camera looks along: the negated third basis
// axis of the orientation.
func (p Pose) Forward() Vec3 {
	_, _, back := p.Orientation.Basis()
	return back.Neg()
}

// ToCamera maps a world point into the camera's local frame, where the
// camera looks down -Z.
func (p Pose) ToCamera(world Vec3) Vec3 {
	right, up, back := p.Orientation.Basis()
	d := world.Sub(p.Position)
	return Vec3{d.Dot(right), d.Dot(up), d.Dot(back)}
}

// PoseFromTransform builds a Pose from a column-major 4x4 rigid transform,
// the layout tracking frameworks hand out per frame. Column 3 is the
// translation; the upper 3x3 block is the rotation.
func PoseFromTransform(m [16]float32) Pose {
	m00, m10, m20 := m[0], m[1], m[2]
	m01, m11, m21 := m[4], m[5], m[6]
	m02, m12, m22 := m[8], m[9], m[10]

	var q Quat
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := float32(math.Sqrt(float64(trace+1))) * 2
		q = Quat{W: s / 4, X: (m21 - m12) / s, Y: (m02 - m20) / s, Z: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := float32(math.Sqrt(float64(1+m00-m11-m22))) * 2
		q = Quat{W: (m21 - m12) / s, X: s / 4, Y: (m01 + m10) / s, Z: (m02 + m20) / s}
	case m11 > m22:
		s := float32(math.Sqrt(float64(1+m11-m00-m22))) * 2
		q = Quat{W: (m02 - m20) / s, X: (m01 + m10) / s, Y: s / 4, Z: (m12 + m21) / s}
	default:
		s := float32(math.Sqrt(float64(1+m22-m00-m11))) * 2
		q = Quat{W: (m10 - m01) / s, X: (m02 + m20) / s, Y: (m12 + m21) / s, Z: s / 4}
	}

	return Pose{
		Position:    Vec3{m[12], m[13], m[14]},
		Orientation: q.Normalize(),
	}
}
