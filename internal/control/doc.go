// Package control computes joint torques from a model's last update.
//
// Every controller has the method
//
//	Torques(m *model.Model, t float64) (dynamo.Control, error)
//
// and is driven by the sim loop once per step:
//
//   - [None]: zero torque
//   - [GravityCompensation]: the model's gravity vector
//   - [JointPID]: per-joint PID toward a joint target, with gravity feedforward
//   - [LQR]: precomputed state feedback on [q; dq]
//   - [OperationalSpace]: task-space PD on a link point, posture in the nullspace
//   - [Manual]: a torque vector set from outside
//
// Controllers implementing [Tunable] expose their gains by name so they can
// be set from configuration.
package control

import "github.com/pkg/errors"

// Tunable controllers expose named gains.
type Tunable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

func unknownParam(name string) error {
	return errors.Errorf("control: unknown parameter %q", name)
}
