package control

import (
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
)

// JointPID runs one PID loop per joint toward Target and adds the model's
// gravity vector as feedforward. The derivative term acts on the measured
// joint velocity, so a target step does not kick.
type JointPID struct {
	Kp     float64
	Ki     float64
	Kd     float64
	Target []float64
	// GravityFeedforward adds g(q) to the PID output.
	GravityFeedforward bool

	integral []float64
	prevT    float64
	first    bool
}

func NewJointPID(kp, ki, kd float64, target []float64) *JointPID {
	return &JointPID{
		Kp:                 kp,
		Ki:                 ki,
		Kd:                 kd,
		Target:             append([]float64(nil), target...),
		GravityFeedforward: true,
		first:              true,
	}
}

func (p *JointPID) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	n := m.Dof()
	if p.Target == nil {
		p.Target = make([]float64, n)
	}
	if err := dynamo.CheckLen("joint pid", "target", p.Target, n); err != nil {
		return nil, err
	}
	if len(p.integral) != n {
		p.integral = make([]float64, n)
	}

	q, dq := m.Q(), m.Dq()
	dt := 0.0
	if !p.first {
		dt = t - p.prevT
	}
	p.prevT = t
	p.first = false

	u := make(dynamo.Control, n)
	for i := range u {
		err := p.Target[i] - q[i]
		if dt > 0 {
			p.integral[i] += err * dt
		}
		u[i] = p.Kp*err + p.Ki*p.integral[i] - p.Kd*dq[i]
	}

	if p.GravityFeedforward {
		g, err := m.GravityVector()
		if err != nil {
			return nil, err
		}
		for i := range u {
			u[i] += g.AtVec(i)
		}
	}
	return u, nil
}

// Reset clears the integral state.
func (p *JointPID) Reset() {
	p.integral = nil
	p.first = true
}

func (p *JointPID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
		"Kd": p.Kd,
	}
}

func (p *JointPID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	default:
		return unknownParam(name)
	}
	return nil
}
