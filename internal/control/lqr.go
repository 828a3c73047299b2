package control

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
)

// LQR applies a precomputed gain K (dof x 2*dof) to the joint state error,
// tau = -K([q; dq] - Target) + g(q). Target is [q*; dq*].
type LQR struct {
	K      *mat.Dense
	Target dynamo.State
}

func NewLQR(k *mat.Dense, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

// NewDiagonalLQR builds K = [diag(kq) diag(kd)], the gain of decoupled
// joint regulators.
func NewDiagonalLQR(kq, kd float64, n int, target dynamo.State) *LQR {
	k := mat.NewDense(n, 2*n, nil)
	for i := 0; i < n; i++ {
		k.Set(i, i, kq)
		k.Set(i, n+i, kd)
	}
	return NewLQR(k, target)
}

func (l *LQR) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	n := m.Dof()
	if n == 0 {
		return dynamo.Control{}, nil
	}
	if r, c := l.K.Dims(); r != n || c != 2*n {
		return nil, dynamo.CheckDims("lqr", "K", r, c, n, 2*n)
	}
	x := append(m.Q(), m.Dq()...)
	target := l.Target
	if target == nil {
		target = dynamo.Zeros(2 * n)
	}
	if err := dynamo.CheckLen("lqr", "target", target, 2*n); err != nil {
		return nil, err
	}

	var u mat.VecDense
	u.MulVec(l.K, mat.NewVecDense(2*n, x.Sub(target)))
	g, err := m.GravityVector()
	if err != nil {
		return nil, err
	}
	u.SubVec(g, &u)
	return toControl(u.RawVector().Data, n), nil
}
