package integrators

import "github.com/san-kum/rbdsim/internal/dynamo"

// Euler is the explicit first-order stepper. It drifts in energy and is kept
// mostly as a baseline.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	out := make(dynamo.State, len(x))
	axpy(out, x, dt, dyn.Derive(x, u, t))
	return out
}

// SemiImplicitEuler updates velocities first and then advances positions
// with the new velocities.
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (e *SemiImplicitEuler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x) / 2
	dx := dyn.Derive(x, u, t)
	out := make(dynamo.State, len(x))
	for i := 0; i < n; i++ {
		out[n+i] = x[n+i] + dt*dx[n+i]
		out[i] = x[i] + dt*out[n+i]
	}
	return out
}
