package integrators

import "github.com/san-kum/rbdsim/internal/dynamo"

// Verlet is velocity Verlet over x = [q; dq]. The second acceleration is
// evaluated with the new positions and the old velocities, which is exact
// only for velocity-independent forces; with joint damping or Coriolis terms
// it stays second order.
type Verlet struct {
	tmp dynamo.State
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x) / 2
	v.tmp = grow(v.tmp, len(x))

	a0 := dyn.Derive(x, u, t)
	out := make(dynamo.State, len(x))
	for i := 0; i < n; i++ {
		out[i] = x[i] + dt*x[n+i] + dt*dt/2*a0[n+i]
		v.tmp[i] = out[i]
		v.tmp[n+i] = x[n+i] + dt*a0[n+i]
	}

	a1 := dyn.Derive(v.tmp, u, t+dt)
	for i := 0; i < n; i++ {
		out[n+i] = x[n+i] + dt/2*(a0[n+i]+a1[n+i])
	}
	return out
}

// Leapfrog is the kick-drift-kick form: half velocity kick, full position
// drift, half kick at the new positions.
type Leapfrog struct {
	tmp dynamo.State
}

func NewLeapfrog() *Leapfrog {
	return &Leapfrog{}
}

func (l *Leapfrog) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x) / 2
	l.tmp = grow(l.tmp, len(x))

	a0 := dyn.Derive(x, u, t)
	for i := 0; i < n; i++ {
		l.tmp[n+i] = x[n+i] + dt/2*a0[n+i]
		l.tmp[i] = x[i] + dt*l.tmp[n+i]
	}

	a1 := dyn.Derive(l.tmp, u, t+dt)
	out := make(dynamo.State, len(x))
	for i := 0; i < n; i++ {
		out[i] = l.tmp[i]
		out[n+i] = l.tmp[n+i] + dt/2*a1[n+i]
	}
	return out
}
