package spatial

import "github.com/go-gl/mathgl/mgl64"

// MotionVector pairs an angular and a linear rate (a twist, or its time
// derivative) of a point on a body.
type MotionVector struct {
	Angular mgl64.Vec3
	Linear  mgl64.Vec3
}

// ForceVector pairs a moment and a force acting at a reference point (a wrench).
type ForceVector struct {
	Moment mgl64.Vec3
	Force  mgl64.Vec3
}

func (m MotionVector) Add(other MotionVector) MotionVector {
	return MotionVector{m.Angular.Add(other.Angular), m.Linear.Add(other.Linear)}
}

// Cross is the motion-force cross product m x* f.
func (m MotionVector) Cross(f ForceVector) ForceVector {
	return ForceVector{
		Moment: m.Angular.Cross(f.Moment).Add(m.Linear.Cross(f.Force)),
		Force:  m.Angular.Cross(f.Force),
	}
}

// Dot returns the power m . f.
func (m MotionVector) Dot(f ForceVector) float64 {
	return m.Angular.Dot(f.Moment) + m.Linear.Dot(f.Force)
}

// PointVelocity returns the velocity of a point offset r from the reference
// point, when m is a twist.
func (m MotionVector) PointVelocity(r mgl64.Vec3) mgl64.Vec3 {
	return m.Linear.Add(m.Angular.Cross(r))
}

func (f ForceVector) Add(other ForceVector) ForceVector {
	return ForceVector{f.Moment.Add(other.Moment), f.Force.Add(other.Force)}
}

// Shift moves the reference point of the wrench by r (new = old + r).
func (f ForceVector) Shift(r mgl64.Vec3) ForceVector {
	return ForceVector{Moment: f.Moment.Sub(r.Cross(f.Force)), Force: f.Force}
}

// Rotate re-expresses both parts of the wrench through rot.
func (f ForceVector) Rotate(rot mgl64.Mat3) ForceVector {
	return ForceVector{Moment: rot.Mul3x1(f.Moment), Force: rot.Mul3x1(f.Force)}
}

// PointForce is the wrench, about the origin, of force applied at point.
func PointForce(point, force mgl64.Vec3) ForceVector {
	return ForceVector{Moment: point.Cross(force), Force: force}
}
