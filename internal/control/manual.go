package control

import (
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
)

// Manual returns whatever torque vector was last set. Missing entries are
// zero.
type Manual struct {
	U dynamo.Control
}

func NewManual(u ...float64) *Manual {
	return &Manual{U: dynamo.Control(u)}
}

func (c *Manual) SetControl(u []float64) {
	c.U = append(c.U[:0], u...)
}

func (c *Manual) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	if len(c.U) > m.Dof() {
		return nil, dynamo.CheckLen("manual torques", "u", c.U, m.Dof())
	}
	return toControl(c.U, m.Dof()), nil
}
