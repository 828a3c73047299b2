// Package integrators steps a joint-space system x = [q; dq] forward in time.
//
// Every stepper implements [dynamo.Integrator]. The second-order steppers
// (Verlet, Leapfrog, SemiImplicitEuler) assume the state layout used by the
// reference world: positions in the first half, velocities in the second,
// with Derive returning [dq; ddq].
package integrators

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

var registry = map[string]func() dynamo.Integrator{
	"euler":      func() dynamo.Integrator { return NewEuler() },
	"semi_euler": func() dynamo.Integrator { return NewSemiImplicitEuler() },
	"rk4":        func() dynamo.Integrator { return NewRK4() },
	"rk45":       func() dynamo.Integrator { return NewRK45() },
	"verlet":     func() dynamo.Integrator { return NewVerlet() },
	"leapfrog":   func() dynamo.Integrator { return NewLeapfrog() },
}

// New returns a fresh stepper by name.
func New(name string) (dynamo.Integrator, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown integrator %q (have %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists the registered steppers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// axpy writes x + a*k into dst.
func axpy(dst, x dynamo.State, a float64, k dynamo.State) {
	for i := range dst {
		dst[i] = x[i] + a*k[i]
	}
}

func grow(s dynamo.State, n int) dynamo.State {
	if len(s) != n {
		return make(dynamo.State, n)
	}
	return s
}
