package control

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
	"github.com/san-kum/rbdsim/internal/orientation"
)

// OperationalSpace is a PD controller on a point of a link, decoupled through
// the task inertia:
//
//	tau = J^T Lambda (Kp*e - Kv*xdot) + N^T (Kq*(q* - q) - Kqd*dq) + g(q)
//
// The task is the point position, or position plus link orientation when
// TargetRotation is set. Posture torques act in the task nullspace.
type OperationalSpace struct {
	Link           string
	Point          mgl64.Vec3
	Target         mgl64.Vec3
	TargetRotation *mgl64.Mat3

	Kp  float64
	Kv  float64
	Kq  float64
	Kqd float64
	// Posture is the joint configuration the nullspace torques pull toward;
	// nil means zero.
	Posture []float64

	// Damped reports whether the last task inertia used the damped inverse.
	Damped bool
}

func NewOperationalSpace(link string, point, target mgl64.Vec3) *OperationalSpace {
	return &OperationalSpace{
		Link:   link,
		Point:  point,
		Target: target,
		Kp:     100,
		Kv:     20,
		Kq:     10,
		Kqd:    2,
	}
}

func (c *OperationalSpace) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	n := m.Dof()
	if n == 0 {
		return dynamo.Control{}, nil
	}

	pos, err := m.Position(c.Link, c.Point)
	if err != nil {
		return nil, err
	}
	vel, err := m.LinearVelocity(c.Link, c.Point)
	if err != nil {
		return nil, err
	}
	e := c.Target.Sub(pos)
	errs := []float64{e[0], e[1], e[2]}
	rates := []float64{vel[0], vel[1], vel[2]}

	var J *mat.Dense
	if c.TargetRotation != nil {
		if J, err = m.J(c.Link, c.Point); err != nil {
			return nil, err
		}
		rot, err := m.Rotation(c.Link)
		if err != nil {
			return nil, err
		}
		w, err := m.AngularVelocity(c.Link)
		if err != nil {
			return nil, err
		}
		de := orientation.Error(*c.TargetRotation, rot)
		errs = append(errs, de[0], de[1], de[2])
		rates = append(rates, w[0], w[1], w[2])
	} else if J, err = m.Jv(c.Link, c.Point); err != nil {
		return nil, err
	}

	task, err := m.Task(J)
	if err != nil {
		return nil, err
	}
	c.Damped = task.Damped

	k := len(errs)
	f := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		f.SetVec(i, c.Kp*errs[i]-c.Kv*rates[i])
	}
	var F mat.VecDense
	F.MulVec(task.Lambda, f)

	var tau mat.VecDense
	tau.MulVec(J.T(), &F)

	q, dq := m.Q(), m.Dq()
	posture := make([]float64, n)
	for i := range posture {
		qd := 0.0
		if i < len(c.Posture) {
			qd = c.Posture[i]
		}
		posture[i] = c.Kq*(qd-q[i]) - c.Kqd*dq[i]
	}
	var null mat.VecDense
	null.MulVec(task.N.T(), mat.NewVecDense(n, posture))
	tau.AddVec(&tau, &null)

	g, err := m.GravityVector()
	if err != nil {
		return nil, err
	}
	tau.AddVec(&tau, g)
	return toControl(tau.RawVector().Data, n), nil
}

func (c *OperationalSpace) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":  c.Kp,
		"Kv":  c.Kv,
		"Kq":  c.Kq,
		"Kqd": c.Kqd,
	}
}

func (c *OperationalSpace) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		c.Kp = value
	case "Kv":
		c.Kv = value
	case "Kq":
		c.Kq = value
	case "Kqd":
		c.Kqd = value
	default:
		return unknownParam(name)
	}
	return nil
}
