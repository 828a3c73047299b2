package dynamics

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamo"
)

// KineticEnergy returns 0.5 * dq^T * M * dq.
func KineticEnergy(m mat.Symmetric, dq []float64) (float64, error) {
	n := m.SymmetricDim()
	if err := dynamo.CheckLen("kinetic energy", "dq", dq, n); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	v := mat.NewVecDense(n, append([]float64(nil), dq...))
	return 0.5 * mat.Inner(v, m, v), nil
}

// PotentialEnergy returns -sum(m_i * g . c_i) over link centers of mass c_i,
// zero when every COM sits at the base origin.
func PotentialEnergy(c *chain.Chain, q []float64, g mgl64.Vec3) (float64, error) {
	f, err := c.Kinematics(q, nil, nil)
	if err != nil {
		return 0, err
	}
	var u float64
	for i, b := range c.Bodies() {
		if b.Inertia.Mass == 0 {
			continue
		}
		com := f.At(i).Transform.Apply(b.Inertia.COM)
		u -= b.Inertia.Mass * g.Dot(com)
	}
	return u, nil
}
