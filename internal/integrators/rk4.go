package integrators

import "github.com/san-kum/rbdsim/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta stepper. Stage buffers are
// reused across steps, so an RK4 value must not be shared between goroutines.
type RK4 struct {
	k   [4]dynamo.State
	tmp dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	for i := range r.k {
		r.k[i] = grow(r.k[i], n)
	}
	r.tmp = grow(r.tmp, n)

	copy(r.k[0], dyn.Derive(x, u, t))
	axpy(r.tmp, x, dt/2, r.k[0])
	copy(r.k[1], dyn.Derive(r.tmp, u, t+dt/2))
	axpy(r.tmp, x, dt/2, r.k[1])
	copy(r.k[2], dyn.Derive(r.tmp, u, t+dt/2))
	axpy(r.tmp, x, dt, r.k[2])
	copy(r.k[3], dyn.Derive(r.tmp, u, t+dt))

	out := make(dynamo.State, n)
	for i := range out {
		out[i] = x[i] + dt/6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
	}
	return out
}
