package dynamics

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/spatial"
)

type composite struct {
	rnea
}

func (c *composite) Backend() Backend { return Composite }

// MassMatrix fills column j with the generalized forces every ancestor joint
// needs to give joint j's subtree a unit acceleration from rest.
func (c *composite) MassMatrix(q []float64) (*mat.SymDense, error) {
	n := c.chain.Dof()
	if err := checkState("mass matrix", n, q, nil, nil); err != nil {
		return nil, err
	}
	if n == 0 {
		return emptySym(), nil
	}
	f, err := c.chain.Kinematics(q, nil, nil)
	if err != nil {
		return nil, err
	}
	bodies := c.chain.Bodies()

	sub := make([]spatial.Inertia, len(bodies))
	for i := len(bodies) - 1; i > 0; i-- {
		sub[i] = sub[i].Add(bodies[i].Inertia.Expressed(f.At(i).Transform))
		if p := bodies[i].Parent; p > 0 {
			sub[p] = sub[p].Add(sub[i])
		}
	}

	M := mat.NewSymDense(n, nil)
	for j := 1; j < len(bodies); j++ {
		bj := bodies[j]
		if bj.Dof < 0 {
			continue
		}
		oj := f.At(j).Transform.Pos
		z := f.At(j).Axis
		ic := sub[j]
		rc := ic.COM.Sub(oj)

		var w spatial.ForceVector
		switch bj.Joint.Type {
		case chain.Revolute:
			w.Force = z.Cross(rc).Mul(ic.Mass)
			w.Moment = ic.Tensor.Mul3x1(z).Add(rc.Cross(w.Force))
		case chain.Prismatic:
			w.Force = z.Mul(ic.Mass)
			w.Moment = rc.Cross(w.Force)
		}

		for k := j; k > 0; k = bodies[k].Parent {
			bk := bodies[k]
			if bk.Dof < 0 {
				continue
			}
			fk := f.At(k)
			wk := w.Shift(fk.Transform.Pos.Sub(oj))
			var v float64
			switch bk.Joint.Type {
			case chain.Revolute:
				v = fk.Axis.Dot(wk.Moment)
			case chain.Prismatic:
				v = fk.Axis.Dot(wk.Force)
			}
			M.SetSym(bk.Dof, bj.Dof, v)
		}
	}
	return M, nil
}

type projected struct {
	rnea
}

func (p *projected) Backend() Backend { return Projected }

// MassMatrix sums m*Jv^T*Jv + Jw^T*I*Jw over links, with Jv taken at each
// link's center of mass and I its tensor about the COM in the base frame.
func (p *projected) MassMatrix(q []float64) (*mat.SymDense, error) {
	n := p.chain.Dof()
	if err := checkState("mass matrix", n, q, nil, nil); err != nil {
		return nil, err
	}
	if n == 0 {
		return emptySym(), nil
	}
	f, err := p.chain.Kinematics(q, nil, nil)
	if err != nil {
		return nil, err
	}
	bodies := p.chain.Bodies()

	sum := mat.NewDense(n, n, nil)
	var term, tmp mat.Dense
	for i := 1; i < len(bodies); i++ {
		in := bodies[i].Inertia
		if in.Mass == 0 && in.Tensor == (mgl64.Mat3{}) {
			continue
		}
		world := in.Expressed(f.At(i).Transform)

		jv := f.COMJacobian(i)
		term.Mul(jv.T(), jv)
		term.Scale(world.Mass, &term)
		sum.Add(sum, &term)

		jw, err := f.AngularJacobian(bodies[i].Name)
		if err != nil {
			return nil, err
		}
		tmp.Mul(toDense(world.Tensor), jw)
		term.Mul(jw.T(), &tmp)
		sum.Add(sum, &term)
	}

	M := mat.NewSymDense(n, nil)
	for r := 0; r < n; r++ {
		for c := r; c < n; c++ {
			M.SetSym(r, c, 0.5*(sum.At(r, c)+sum.At(c, r)))
		}
	}
	return M, nil
}

func toDense(m mgl64.Mat3) *mat.Dense {
	d := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			d.Set(r, c, m.At(r, c))
		}
	}
	return d
}
