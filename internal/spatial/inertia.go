package spatial

import "github.com/go-gl/mathgl/mgl64"

// Inertia holds rigid-body inertial parameters. COM is expressed in the
// frame the inertia lives in; Tensor is taken about the COM with axes of that
// same frame.
type Inertia struct {
	Mass   float64
	COM    mgl64.Vec3
	Tensor mgl64.Mat3
}

// PointMass returns the inertia of a point mass located at com.
func PointMass(mass float64, com mgl64.Vec3) Inertia {
	return Inertia{Mass: mass, COM: com}
}

// Diagonal returns an inertia with a diagonal tensor about the COM.
func Diagonal(mass float64, com mgl64.Vec3, ixx, iyy, izz float64) Inertia {
	return Inertia{Mass: mass, COM: com, Tensor: mgl64.Diag3(mgl64.Vec3{ixx, iyy, izz})}
}

// Expressed returns the inertia re-expressed through t: the COM is mapped as
// a point and the tensor rotated as R*I*R^T.
func (in Inertia) Expressed(t Transform) Inertia {
	return Inertia{
		Mass:   in.Mass,
		COM:    t.Apply(in.COM),
		Tensor: t.Rot.Mul3(in.Tensor).Mul3(t.Rot.Transpose()),
	}
}

// Add merges two bodies expressed in the same frame into one composite body.
func (in Inertia) Add(other Inertia) Inertia {
	m := in.Mass + other.Mass
	if m == 0 {
		return Inertia{COM: in.COM, Tensor: in.Tensor.Add(other.Tensor)}
	}
	com := in.COM.Mul(in.Mass).Add(other.COM.Mul(other.Mass)).Mul(1 / m)
	tensor := in.Tensor.Add(Steiner(in.Mass, in.COM.Sub(com))).
		Add(other.Tensor).Add(Steiner(other.Mass, other.COM.Sub(com)))
	return Inertia{Mass: m, COM: com, Tensor: tensor}
}

// About returns the rotational inertia about point p (same frame as COM).
func (in Inertia) About(p mgl64.Vec3) mgl64.Mat3 {
	return in.Tensor.Add(Steiner(in.Mass, in.COM.Sub(p)))
}

// Steiner is the parallel-axis term m*(|d|^2*E - d*d^T).
func Steiner(m float64, d mgl64.Vec3) mgl64.Mat3 {
	dd := d.Dot(d)
	outer := d.OuterProd3(d)
	return mgl64.Ident3().Mul(dd).Sub(outer).Mul(m)
}
