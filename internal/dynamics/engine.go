// Package dynamics computes joint-space rigid-body dynamics for a chain:
// the mass matrix M(q), the gravity vector g(q) and the Coriolis/centrifugal
// vector b(q, dq), so that tau = M*ddq + b + g.
//
// Two mass-matrix backends are available behind the Engine interface. Both
// share a base-frame recursive Newton-Euler pass for the bias terms.
package dynamics

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamo"
)

// Engine is the dynamics capability used by the model and the reference world.
// A chain with no degrees of freedom yields empty matrices and vectors.
type Engine interface {
	Backend() Backend
	MassMatrix(q []float64) (*mat.SymDense, error)
	Gravity(q []float64, g mgl64.Vec3) (*mat.VecDense, error)
	Coriolis(q, dq []float64) (*mat.VecDense, error)
	InverseDynamics(q, dq, ddq []float64, g mgl64.Vec3) (*mat.VecDense, error)
}

// Backend selects the mass-matrix formulation.
type Backend int

const (
	// Composite accumulates composite-body inertias from the leaves inward.
	Composite Backend = iota
	// Projected sums each link's inertia projected through its COM Jacobian.
	Projected
)

func (b Backend) String() string {
	switch b {
	case Composite:
		return "composite"
	case Projected:
		return "projected"
	default:
		return "unknown"
	}
}

func (b Backend) MarshalText() ([]byte, error) {
	if b != Composite && b != Projected {
		return nil, errors.Errorf("unknown dynamics backend %d", int(b))
	}
	return []byte(b.String()), nil
}

func (b *Backend) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "composite", "crba", "":
		*b = Composite
	case "projected", "jacobian":
		*b = Projected
	default:
		return errors.Errorf("unknown dynamics backend %q", string(text))
	}
	return nil
}

// Backends lists the available backends by name.
func Backends() []string {
	return []string{Composite.String(), Projected.String()}
}

// New returns the engine for backend over c.
func New(c *chain.Chain, backend Backend) (Engine, error) {
	if c == nil {
		return nil, errors.New("dynamics: nil chain")
	}
	r := rnea{chain: c}
	switch backend {
	case Composite:
		return &composite{rnea: r}, nil
	case Projected:
		return &projected{rnea: r}, nil
	}
	return nil, errors.Errorf("dynamics: unknown backend %d", int(backend))
}

func emptyVec() *mat.VecDense {
	return &mat.VecDense{}
}

func emptySym() *mat.SymDense {
	return &mat.SymDense{}
}

func checkState(op string, n int, q, dq, ddq []float64) error {
	if err := dynamo.CheckLen(op, "q", q, n); err != nil {
		return err
	}
	if dq != nil {
		if err := dynamo.CheckLen(op, "dq", dq, n); err != nil {
			return err
		}
	}
	if ddq != nil {
		return dynamo.CheckLen(op, "ddq", ddq, n)
	}
	return nil
}
