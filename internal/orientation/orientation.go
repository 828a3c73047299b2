// Package orientation computes rotational error vectors for orientation
// control. Both forms return dphi = theta*u, where desired = exp(theta*u)*current
// with u expressed in the base frame, so driving dphi to zero drives current
// onto desired.
//
// At exactly 180 degrees the axis is ambiguous. It is taken from the largest
// diagonal entry of (R+I)/2 and signed so that its largest-magnitude
// component is positive; ties go to the lower index. The quaternion form
// applies the same sign rule, so both forms agree there too.
package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"
)

const (
	smallAngle = 1e-6
	// halfTurn is the sine below which a rotation near pi is treated as exactly pi.
	halfTurn = 1e-12
)

// Error returns the rotation vector carrying current onto desired.
func Error(desired, current mgl64.Mat3) mgl64.Vec3 {
	// 0.5 * sum of column cross products is sin(theta) * u
	var v mgl64.Vec3
	for i := 0; i < 3; i++ {
		v = v.Add(current.Col(i).Cross(desired.Col(i)))
	}
	v = v.Mul(0.5)

	r := desired.Mul3(current.Transpose())
	c := 0.5 * (r.Trace() - 1)
	s := v.Len()
	theta := math.Atan2(s, c)

	switch {
	case theta < smallAngle:
		return v
	case c < 0 && s < smallAngle:
		// sin(theta) has lost its precision near pi; the axis is better
		// recovered from the symmetric part
		return halfTurnAxis(r, v).Mul(theta)
	}
	return v.Mul(theta / s)
}

// QuatError is Error for unit quaternions. Inputs are normalized first.
func QuatError(desired, current quat.Number) mgl64.Vec3 {
	d := normalize(desired)
	cur := normalize(current)
	r := quat.Mul(d, quat.Conj(cur))
	if r.Real < 0 {
		r = quat.Scale(-1, r)
	}
	v := mgl64.Vec3{r.Imag, r.Jmag, r.Kmag}
	s := v.Len()

	switch {
	case s < halfTurn:
		return v.Mul(2)
	case 2*r.Real*s < halfTurn:
		// sin(theta) = 2*w*|v| is compared on the same scale as Error
		return canonicalSign(v.Mul(1 / s)).Mul(math.Pi)
	}
	theta := 2 * math.Atan2(s, r.Real)
	return v.Mul(theta / s)
}

// Angle returns the magnitude of the rotation carrying current onto desired.
func Angle(desired, current mgl64.Mat3) float64 {
	return Error(desired, current).Len()
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// halfTurnAxis recovers the unit axis of a rotation by about pi from
// (R+I)/2 = u*u^T. When hint is non-zero the axis is oriented along it.
func halfTurnAxis(r mgl64.Mat3, hint mgl64.Vec3) mgl64.Vec3 {
	b := r.Add(mgl64.Ident3()).Mul(0.5)
	k := 0
	for i := 1; i < 3; i++ {
		if b.At(i, i) > b.At(k, k) {
			k = i
		}
	}
	u := b.Col(k).Mul(1 / math.Sqrt(math.Max(b.At(k, k), 1e-300)))
	u = u.Normalize()
	if hint.Len() > halfTurn {
		if u.Dot(hint) < 0 {
			u = u.Mul(-1)
		}
		return u
	}
	return canonicalSign(u)
}

// canonicalSign flips u so its largest-magnitude component is positive.
func canonicalSign(u mgl64.Vec3) mgl64.Vec3 {
	k := 0
	for i := 1; i < 3; i++ {
		if math.Abs(u[i]) > math.Abs(u[k])+1e-12 {
			k = i
		}
	}
	if u[k] < 0 {
		return u.Mul(-1)
	}
	return u
}
