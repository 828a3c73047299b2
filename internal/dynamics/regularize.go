package dynamics

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

const (
	// MinReciprocalCondition is the smallest accepted 1/cond(M) before the
	// diagonal is loaded.
	MinReciprocalCondition = 1e-12
	// RegularizationEpsilon is the diagonal load, relative to the largest
	// diagonal entry of M (or 1 when M is all zero).
	RegularizationEpsilon = 1e-9

	maxRegularizationTries = 8
)

// Conditioning reports how an inversion went.
type Conditioning struct {
	// Condition is the estimated condition number of the factorized matrix.
	Condition float64
	// Regularized is set when the diagonal had to be loaded by Epsilon.
	Regularized bool
	Epsilon     float64
}

// Regularized holds a mass matrix, possibly diagonally loaded, and its inverse.
type Regularized struct {
	M       *mat.SymDense
	Inverse *mat.SymDense
	Conditioning
}

// Regularize inverts m through a Cholesky factorization. When m is not
// positive definite or is nearly singular, an increasing multiple of
// RegularizationEpsilon is added to the diagonal until the factorization
// succeeds. This keeps the inverse finite at kinematic degeneracies such as a
// massless subtree; it does not correct a badly specified model. The returned
// M is the matrix actually inverted.
func Regularize(m *mat.SymDense) (*Regularized, error) {
	if m == nil || m.SymmetricDim() == 0 {
		return &Regularized{M: emptySym(), Inverse: emptySym()}, nil
	}
	n := m.SymmetricDim()

	var chol mat.Cholesky
	if chol.Factorize(m) && 1/chol.Cond() >= MinReciprocalCondition {
		inv := mat.NewSymDense(n, nil)
		if err := chol.InverseTo(inv); err == nil {
			cp := mat.NewSymDense(n, nil)
			cp.CopySym(m)
			return &Regularized{M: cp, Inverse: inv, Conditioning: Conditioning{Condition: chol.Cond()}}, nil
		}
	}

	scale := 0.0
	for i := 0; i < n; i++ {
		scale = math.Max(scale, math.Abs(m.At(i, i)))
	}
	if scale == 0 {
		scale = 1
	}

	eps := RegularizationEpsilon * scale
	for try := 0; try < maxRegularizationTries; try++ {
		loaded := mat.NewSymDense(n, nil)
		loaded.CopySym(m)
		for i := 0; i < n; i++ {
			loaded.SetSym(i, i, loaded.At(i, i)+eps)
		}
		if chol.Factorize(loaded) && 1/chol.Cond() >= MinReciprocalCondition {
			inv := mat.NewSymDense(n, nil)
			if err := chol.InverseTo(inv); err == nil {
				return &Regularized{M: loaded, Inverse: inv, Conditioning: Conditioning{
					Condition:   chol.Cond(),
					Regularized: true,
					Epsilon:     eps,
				}}, nil
			}
		}
		eps *= 100
	}
	return nil, errors.Wrapf(dynamo.ErrNumericalSingularity, "mass matrix not invertible after loading diagonal by %g", eps)
}
