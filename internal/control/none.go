package control

import (
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
)

type None struct{}

func NewNone() *None {
	return &None{}
}

func (n *None) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	return make(dynamo.Control, m.Dof()), nil
}

// GravityCompensation applies the torque that holds the robot still against
// the model's gravity.
type GravityCompensation struct{}

func NewGravityCompensation() *GravityCompensation {
	return &GravityCompensation{}
}

func (g *GravityCompensation) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	gv, err := m.GravityVector()
	if err != nil {
		return nil, err
	}
	return toControl(gv.RawVector().Data, m.Dof()), nil
}

// toControl copies v into a Control of length n; an empty gonum vector has
// no backing data.
func toControl(v []float64, n int) dynamo.Control {
	out := make(dynamo.Control, n)
	copy(out, v)
	return out
}
