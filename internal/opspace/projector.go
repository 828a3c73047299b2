// Package opspace derives operational-space quantities from a task Jacobian
// and the joint-space mass matrix: the task inertia Lambda, the dynamically
// consistent inverse Jacobian Jbar and nullspace projectors, including the
// chained projectors of prioritized task hierarchies.
//
// Nothing here is cached; every call works from the J it is given and the
// M, M^-1 the Projector was built with.
package opspace

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

const (
	// DefaultMaxCondition is the condition number of J*M^-1*J^T above which
	// the task inertia is computed with a damped inverse.
	DefaultMaxCondition = 1e8
	// DefaultDamping scales the damping term rho relative to the largest
	// eigenvalue of J*M^-1*J^T.
	DefaultDamping = 1e-3
)

type Option func(*Projector)

func WithMaxCondition(c float64) Option {
	return func(p *Projector) { p.maxCond = c }
}

func WithDamping(d float64) Option {
	return func(p *Projector) { p.damping = d }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Projector) { p.logger = l }
}

type Projector struct {
	m, mInv *mat.SymDense
	dof     int
	maxCond float64
	damping float64
	logger  *zap.SugaredLogger
}

// New returns a projector over the mass matrix m and its inverse.
func New(m, mInv *mat.SymDense, opts ...Option) (*Projector, error) {
	if m == nil || mInv == nil {
		return nil, errors.New("opspace: nil mass matrix")
	}
	n := m.SymmetricDim()
	if err := dynamo.CheckDims("opspace", "M^-1", mInv.SymmetricDim(), mInv.SymmetricDim(), n, n); err != nil {
		return nil, err
	}
	p := &Projector{
		m:       m,
		mInv:    mInv,
		dof:     n,
		maxCond: DefaultMaxCondition,
		damping: DefaultDamping,
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxCond <= 1 {
		return nil, errors.Errorf("opspace: max condition must exceed 1, got %g", p.maxCond)
	}
	if p.damping <= 0 {
		return nil, errors.Errorf("opspace: damping must be positive, got %g", p.damping)
	}
	return p, nil
}

func (p *Projector) Dof() int {
	return p.dof
}

// Conditioning describes the inversion of J*M^-1*J^T.
type Conditioning struct {
	Condition float64
	// Damped is set when Lambda came from the damped inverse with factor Rho.
	Damped bool
	Rho    float64
}

// Task bundles the projections of one task Jacobian.
type Task struct {
	J      mat.Matrix
	Lambda *mat.SymDense
	Jbar   *mat.Dense
	N      *mat.Dense
	Conditioning
}

// Task computes Lambda, Jbar and N = I - Jbar*J for J.
func (p *Projector) Task(J mat.Matrix) (*Task, error) {
	lambda, cond, err := p.taskInertia(J)
	if err != nil {
		return nil, err
	}
	t := &Task{J: J, Lambda: lambda, Conditioning: cond}
	if t.Lambda.SymmetricDim() == 0 {
		t.Jbar, t.N = &mat.Dense{}, p.identity()
		return t, nil
	}
	t.Jbar = p.jbar(J, lambda)
	t.N = p.nullspace(J, t.Jbar, nil)
	return t, nil
}

// TaskInertia returns Lambda = (J*M^-1*J^T)^-1, damped when ill-conditioned
// and zero when J does not reach the joints at all.
func (p *Projector) TaskInertia(J mat.Matrix) (*mat.SymDense, error) {
	lambda, _, err := p.taskInertia(J)
	return lambda, err
}

// DynConsistentInverse returns Jbar = M^-1*J^T*Lambda.
func (p *Projector) DynConsistentInverse(J mat.Matrix) (*mat.Dense, error) {
	t, err := p.Task(J)
	if err != nil {
		return nil, err
	}
	return t.Jbar, nil
}

// Nullspace returns N = I - Jbar*J. N*N = N and J*N = 0: joint motion
// filtered through N does not move the task.
func (p *Projector) Nullspace(J mat.Matrix) (*mat.Dense, error) {
	t, err := p.Task(J)
	if err != nil {
		return nil, err
	}
	return t.N, nil
}

// NullspaceAfter returns (I - Jbar*J)*Nprec for a task ranked below the
// tasks already carved out by Nprec. J should be the task's Jacobian already
// projected through Nprec so that its own Jbar respects the higher priorities.
func (p *Projector) NullspaceAfter(J mat.Matrix, nPrec mat.Matrix) (*mat.Dense, error) {
	if nPrec == nil {
		return nil, errors.New("opspace: nil preceding nullspace")
	}
	r, c := nPrec.Dims()
	if err := dynamo.CheckDims("nullspace", "N_prec", r, c, p.dof, p.dof); err != nil {
		return nil, err
	}
	t, err := p.Task(J)
	if err != nil {
		return nil, err
	}
	if t.Jbar.IsEmpty() {
		return mat.DenseCopyOf(nPrec), nil
	}
	return p.nullspace(J, t.Jbar, nPrec), nil
}

// TorqueNullspace returns N^T = I - J^T*Jbar^T, the projector acting on
// joint torques.
func (p *Projector) TorqueNullspace(J mat.Matrix) (*mat.Dense, error) {
	n, err := p.Nullspace(J)
	if err != nil {
		return nil, err
	}
	if n.IsEmpty() {
		return n, nil
	}
	return mat.DenseCopyOf(n.T()), nil
}

func (p *Projector) identity() *mat.Dense {
	if p.dof == 0 {
		return &mat.Dense{}
	}
	eye := mat.NewDense(p.dof, p.dof, nil)
	for i := 0; i < p.dof; i++ {
		eye.Set(i, i, 1)
	}
	return eye
}

func (p *Projector) jbar(J mat.Matrix, lambda *mat.SymDense) *mat.Dense {
	var tmp mat.Dense
	tmp.Mul(p.mInv, J.T())
	var out mat.Dense
	out.Mul(&tmp, lambda)
	return &out
}

func (p *Projector) nullspace(J mat.Matrix, jbar *mat.Dense, nPrec mat.Matrix) *mat.Dense {
	var proj mat.Dense
	proj.Mul(jbar, J)
	n := p.identity()
	n.Sub(n, &proj)
	if nPrec != nil {
		var out mat.Dense
		out.Mul(n, nPrec)
		return &out
	}
	return n
}

func (p *Projector) taskInertia(J mat.Matrix) (*mat.SymDense, Conditioning, error) {
	if J == nil {
		return nil, Conditioning{}, errors.New("opspace: nil jacobian")
	}
	if d, ok := J.(*mat.Dense); ok && d.IsEmpty() {
		if p.dof != 0 {
			return nil, Conditioning{}, dynamo.CheckDims("task inertia", "J", 0, 0, -1, p.dof)
		}
		return &mat.SymDense{}, Conditioning{Condition: 1}, nil
	}
	k, c := J.Dims()
	if err := dynamo.CheckDims("task inertia", "J", k, c, -1, p.dof); err != nil {
		return nil, Conditioning{}, err
	}

	var tmp, inner mat.Dense
	tmp.Mul(J, p.mInv)
	inner.Mul(&tmp, J.T())
	sym := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			sym.SetSym(i, j, 0.5*(inner.At(i, j)+inner.At(j, i)))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, Conditioning{}, errors.Wrap(dynamo.ErrNumericalSingularity, "task inertia eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	lmin, lmax := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lmin = math.Min(lmin, v)
		lmax = math.Max(lmax, v)
	}
	cond := Conditioning{Condition: math.Inf(1)}
	if lmin > 0 {
		cond.Condition = lmax / lmin
	}
	if lmax <= 0 {
		// J*M^-1*J^T is positive semi-definite, so J = 0. Its pseudo-inverse
		// is zero, which leaves Jbar = 0 and N = I.
		cond.Damped = true
		p.logger.Warnw("task jacobian has no effect on the joints, using pseudo-inverse",
			"condition", cond.Condition, "rho", cond.Rho, "task_dim", k)
		return mat.NewSymDense(k, nil), cond, nil
	}

	inv := func(l float64) float64 { return 1 / l }
	if lmin <= 0 || cond.Condition > p.maxCond {
		cond.Damped = true
		cond.Rho = p.damping * lmax
		rho2 := cond.Rho * cond.Rho
		inv = func(l float64) float64 {
			if l < 0 {
				l = 0
			}
			return l / (l*l + rho2)
		}
		p.logger.Warnw("task inertia near singular, using damped inverse",
			"condition", cond.Condition, "rho", cond.Rho, "task_dim", k)
	}

	lambda := mat.NewSymDense(k, nil)
	for e, l := range vals {
		w := inv(l)
		for i := 0; i < k; i++ {
			vi := vecs.At(i, e) * w
			for j := i; j < k; j++ {
				lambda.SetSym(i, j, lambda.At(i, j)+vi*vecs.At(j, e))
			}
		}
	}
	return lambda, cond, nil
}
