// Package spatial holds the rigid-body math shared by the kinematics,
// dynamics and sensing packages: rigid transforms, rotation constructors,
// inertial parameters, and angular/linear vector pairs.
//
// Vectors and rotations are mgl64 values; quaternions cross the package
// boundary as gonum quat.Number and points handed in from a simulation
// engine as r3.Vector.
package spatial

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Transform is a rigid transform: a rotation followed by a translation.
// Applied to a point p it yields Rot*p + Pos.
type Transform struct {
	Rot mgl64.Mat3
	Pos mgl64.Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rot: mgl64.Ident3()}
}

// Translation returns a pure translation.
func Translation(x, y, z float64) Transform {
	return Transform{Rot: mgl64.Ident3(), Pos: mgl64.Vec3{x, y, z}}
}

// NewTransform builds a transform from a translation and URDF roll/pitch/yaw.
func NewTransform(xyz, rpy [3]float64) Transform {
	return Transform{
		Rot: RotationRPY(rpy[0], rpy[1], rpy[2]),
		Pos: mgl64.Vec3{xyz[0], xyz[1], xyz[2]},
	}
}

// Mul composes t with other: the result maps other's frame into t's parent.
func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Rot: t.Rot.Mul3(other.Rot),
		Pos: t.Rot.Mul3x1(other.Pos).Add(t.Pos),
	}
}

// Inverse returns the inverse rigid transform.
func (t Transform) Inverse() Transform {
	rt := t.Rot.Transpose()
	return Transform{Rot: rt, Pos: rt.Mul3x1(t.Pos).Mul(-1)}
}

// Apply maps a point.
func (t Transform) Apply(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rot.Mul3x1(p).Add(t.Pos)
}

// ApplyVector rotates a free vector; translation does not apply.
func (t Transform) ApplyVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rot.Mul3x1(v)
}

// Mat4 returns the homogeneous matrix form.
func (t Transform) Mat4() mgl64.Mat4 {
	m := t.Rot.Mat4()
	m.SetCol(3, mgl64.Vec4{t.Pos[0], t.Pos[1], t.Pos[2], 1})
	return m
}

// FromMat4 extracts a rigid transform from a homogeneous matrix.
func FromMat4(m mgl64.Mat4) Transform {
	return Transform{Rot: m.Mat3(), Pos: m.Col(3).Vec3()}
}

// AlmostEqual compares rotation and translation entrywise within eps.
func (t Transform) AlmostEqual(other Transform, eps float64) bool {
	return t.Rot.ApproxEqualThreshold(other.Rot, eps) && t.Pos.ApproxEqualThreshold(other.Pos, eps)
}

// RotationAbout returns the rotation of angle radians about axis. The axis
// need not be normalized but must be non-zero.
func RotationAbout(axis mgl64.Vec3, angle float64) mgl64.Mat3 {
	return mgl64.QuatRotate(angle, axis.Normalize()).Mat4().Mat3()
}

// RotationRPY returns Rz(yaw)*Ry(pitch)*Rx(roll), the URDF fixed-axis convention.
func RotationRPY(roll, pitch, yaw float64) mgl64.Mat3 {
	return mgl64.Rotate3DZ(yaw).Mul3(mgl64.Rotate3DY(pitch)).Mul3(mgl64.Rotate3DX(roll))
}

// Skew returns the cross-product matrix of v, so Skew(v)*w == v.Cross(w).
func Skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{0, -v[2], v[1]},
		mgl64.Vec3{v[2], 0, -v[0]},
		mgl64.Vec3{-v[1], v[0], 0},
	)
}

// Vee is the inverse of Skew applied to the skew-symmetric part of m.
func Vee(m mgl64.Mat3) mgl64.Vec3 {
	return mgl64.Vec3{
		0.5 * (m.At(2, 1) - m.At(1, 2)),
		0.5 * (m.At(0, 2) - m.At(2, 0)),
		0.5 * (m.At(1, 0) - m.At(0, 1)),
	}
}

// QuatFromRotation converts a rotation matrix to a unit quaternion with a
// non-negative real part.
func QuatFromRotation(r mgl64.Mat3) quat.Number {
	q := mgl64.Mat4ToQuat(r.Mat4()).Normalize()
	out := quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}
	if out.Real < 0 {
		out = quat.Scale(-1, out)
	}
	return out
}

// RotationFromQuat converts a quaternion (normalized first) to a rotation matrix.
func RotationFromQuat(q quat.Number) mgl64.Mat3 {
	n := quat.Abs(q)
	if n == 0 {
		return mgl64.Ident3()
	}
	mq := mgl64.Quat{W: q.Real / n, V: mgl64.Vec3{q.Imag / n, q.Jmag / n, q.Kmag / n}}
	return mq.Mat4().Mat3()
}

// IsRotation reports whether r is orthonormal with determinant +1 within eps.
func IsRotation(r mgl64.Mat3, eps float64) bool {
	if math.Abs(r.Det()-1) > eps {
		return false
	}
	return r.Mul3(r.Transpose()).ApproxEqualThreshold(mgl64.Ident3(), eps)
}

// FromR3 converts an r3 point.
func FromR3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// ToR3 converts to an r3 point.
func ToR3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
