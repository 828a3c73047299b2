package dynamics

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/spatial"
)

// rnea is the recursive Newton-Euler pass, carried out entirely in the base
// frame. Gravity enters as an upward acceleration of the base.
type rnea struct {
	chain *chain.Chain
}

func (r *rnea) Gravity(q []float64, g mgl64.Vec3) (*mat.VecDense, error) {
	if err := checkState("gravity", r.chain.Dof(), q, nil, nil); err != nil {
		return nil, err
	}
	return r.solve(q, nil, nil, g)
}

func (r *rnea) Coriolis(q, dq []float64) (*mat.VecDense, error) {
	if err := checkState("coriolis", r.chain.Dof(), q, nil, nil); err != nil {
		return nil, err
	}
	if err := dynamo.CheckLen("coriolis", "dq", dq, r.chain.Dof()); err != nil {
		return nil, err
	}
	return r.solve(q, dq, nil, mgl64.Vec3{})
}

func (r *rnea) InverseDynamics(q, dq, ddq []float64, g mgl64.Vec3) (*mat.VecDense, error) {
	if err := checkState("inverse dynamics", r.chain.Dof(), q, dq, ddq); err != nil {
		return nil, err
	}
	return r.solve(q, dq, ddq, g)
}

func (r *rnea) solve(q, dq, ddq []float64, g mgl64.Vec3) (*mat.VecDense, error) {
	n := r.chain.Dof()
	if n == 0 {
		return emptyVec(), nil
	}
	f, err := r.chain.Kinematics(q, dq, ddq)
	if err != nil {
		return nil, err
	}
	bodies := r.chain.Bodies()

	// wrench each link transmits to its parent, about the link origin
	w := make([]spatial.ForceVector, len(bodies))
	for i := len(bodies) - 1; i > 0; i-- {
		b := bodies[i]
		fr := f.At(i)
		o := fr.Transform.Pos

		if b.Inertia.Mass > 0 || b.Inertia.Tensor != (mgl64.Mat3{}) {
			in := b.Inertia.Expressed(fr.Transform)
			rc := in.COM.Sub(o)
			omega, alpha := fr.Twist.Angular, fr.Accel.Angular
			ac := fr.Accel.Linear.Add(alpha.Cross(rc)).Add(omega.Cross(omega.Cross(rc))).Sub(g)

			force := ac.Mul(in.Mass)
			moment := in.Tensor.Mul3x1(alpha).Add(omega.Cross(in.Tensor.Mul3x1(omega)))
			w[i] = w[i].Add(spatial.ForceVector{Moment: moment.Add(rc.Cross(force)), Force: force})
		}

		p := b.Parent
		if p > 0 {
			// re-reference the accumulated wrench to the parent origin
			w[p] = w[p].Add(w[i].Shift(f.At(p).Transform.Pos.Sub(o)))
		}
	}

	tau := mat.NewVecDense(n, nil)
	for i := 1; i < len(bodies); i++ {
		b := bodies[i]
		if b.Dof < 0 {
			continue
		}
		z := f.At(i).Axis
		switch b.Joint.Type {
		case chain.Revolute:
			tau.SetVec(b.Dof, z.Dot(w[i].Moment))
		case chain.Prismatic:
			tau.SetVec(b.Dof, z.Dot(w[i].Force))
		}
	}
	return tau, nil
}
