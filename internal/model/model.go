// Package model is the query surface used by control and sensing code. A
// Model owns the joint state of one chain and a snapshot of its kinematics
// and dynamics, recomputed wholesale by UpdateModel.
//
// Usage follows a fixed-step loop: write q and dq, call UpdateModel, then
// read. Every accessor reflects the state at the last successful update and
// fails with dynamo.ErrStaleState before the first one. A Model is not safe
// for concurrent use.
package model

import (
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamics"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/opspace"
	"github.com/san-kum/rbdsim/internal/spatial"
)

type Option func(*Model)

func WithBackend(b dynamics.Backend) Option {
	return func(m *Model) { m.backend = b }
}

// WithGravity sets the gravity field used by UpdateModel and PotentialEnergy.
func WithGravity(g mgl64.Vec3) Option {
	return func(m *Model) { m.gravity = g }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Model) { m.logger = l }
}

func WithName(name string) Option {
	return func(m *Model) { m.name = name }
}

// WithProjectorOptions configures the operational-space projector built on
// each update.
func WithProjectorOptions(opts ...opspace.Option) Option {
	return func(m *Model) { m.projOpts = append(m.projOpts, opts...) }
}

type Model struct {
	name     string
	chain    *chain.Chain
	engine   dynamics.Engine
	backend  dynamics.Backend
	gravity  mgl64.Vec3
	logger   *zap.SugaredLogger
	projOpts []opspace.Option

	q, dq, ddq dynamo.State

	snap    *snapshot
	updates uint64
}

// snapshot is replaced as a whole; nothing in it is mutated after UpdateModel.
type snapshot struct {
	q, dq, ddq dynamo.State
	frames     *chain.Frames
	m, mInv    *mat.SymDense
	g, b       *mat.VecDense
	cond       dynamics.Conditioning
	proj       *opspace.Projector
}

// New returns a model of c at q = dq = ddq = 0. It is stale until UpdateModel.
func New(c *chain.Chain, opts ...Option) (*Model, error) {
	if c == nil {
		return nil, errors.New("model: nil chain")
	}
	m := &Model{
		name:    "robot",
		chain:   c,
		backend: dynamics.Composite,
		gravity: mgl64.Vec3(dynamo.StandardGravity),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	engine, err := dynamics.New(c, m.backend)
	if err != nil {
		return nil, errors.Wrap(err, "model")
	}
	m.engine = engine
	n := c.Dof()
	m.q, m.dq, m.ddq = dynamo.Zeros(n), dynamo.Zeros(n), dynamo.Zeros(n)
	m.projOpts = append([]opspace.Option{opspace.WithLogger(m.logger)}, m.projOpts...)
	return m, nil
}

func (m *Model) Name() string               { return m.name }
func (m *Model) Dof() int                   { return m.chain.Dof() }
func (m *Model) Chain() *chain.Chain        { return m.chain }
func (m *Model) Backend() dynamics.Backend  { return m.backend }
func (m *Model) Gravity() mgl64.Vec3        { return m.gravity }
func (m *Model) HasLink(name string) bool   { return m.chain.HasLink(name) }
func (m *Model) Logger() *zap.SugaredLogger { return m.logger }

// Updates counts successful calls to UpdateModel.
func (m *Model) Updates() uint64 { return m.updates }

// Stale reports whether accessors would fail with ErrStaleState.
func (m *Model) Stale() bool { return m.snap == nil }

func (m *Model) Q() dynamo.State   { return m.q.Clone() }
func (m *Model) Dq() dynamo.State  { return m.dq.Clone() }
func (m *Model) Ddq() dynamo.State { return m.ddq.Clone() }

func (m *Model) SetQ(q []float64) error {
	if err := dynamo.CheckLen("set q", "q", q, m.Dof()); err != nil {
		return err
	}
	copy(m.q, q)
	return nil
}

func (m *Model) SetDq(dq []float64) error {
	if err := dynamo.CheckLen("set dq", "dq", dq, m.Dof()); err != nil {
		return err
	}
	copy(m.dq, dq)
	return nil
}

func (m *Model) SetDdq(ddq []float64) error {
	if err := dynamo.CheckLen("set ddq", "ddq", ddq, m.Dof()); err != nil {
		return err
	}
	copy(m.ddq, ddq)
	return nil
}

// SetJointPosition sets q[i].
func (m *Model) SetJointPosition(i int, v float64) error {
	if i < 0 || i >= m.Dof() {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "set joint position: index %d outside [0, %d)", i, m.Dof())
	}
	m.q[i] = v
	return nil
}

// UpdateModel recomputes frames, M, M^-1, g and b for the current state.
// On failure the model is left stale rather than holding a snapshot of an
// older state.
func (m *Model) UpdateModel() error {
	snap, err := m.compute()
	if err != nil {
		m.snap = nil
		return errors.Wrapf(err, "update model %s", m.name)
	}
	m.snap = snap
	m.updates++
	return nil
}

func (m *Model) compute() (*snapshot, error) {
	for _, s := range []dynamo.State{m.q, m.dq, m.ddq} {
		if !s.IsValid() {
			return nil, dynamo.ErrInvalidState
		}
	}
	s := &snapshot{q: m.q.Clone(), dq: m.dq.Clone(), ddq: m.ddq.Clone()}

	var err error
	if s.frames, err = m.chain.Kinematics(s.q, s.dq, s.ddq); err != nil {
		return nil, err
	}
	raw, err := m.engine.MassMatrix(s.q)
	if err != nil {
		return nil, err
	}
	reg, err := dynamics.Regularize(raw)
	if err != nil {
		return nil, err
	}
	if reg.Regularized {
		m.logger.Warnw("mass matrix regularized", "model", m.name, "epsilon", reg.Epsilon, "q", []float64(s.q))
	}
	s.m, s.mInv, s.cond = reg.M, reg.Inverse, reg.Conditioning

	if s.g, err = m.engine.Gravity(s.q, m.gravity); err != nil {
		return nil, err
	}
	if s.b, err = m.engine.Coriolis(s.q, s.dq); err != nil {
		return nil, err
	}
	if s.proj, err = opspace.New(s.m, s.mInv, m.projOpts...); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload swaps in a new chain with the same dof, for example after the
// model description changed on disk. The model becomes stale; sensors
// attached to links missing from c fail on their next update.
func (m *Model) Reload(c *chain.Chain) error {
	if c == nil {
		return errors.New("model: reload with nil chain")
	}
	if c.Dof() != m.Dof() {
		return &dynamo.DimensionError{Op: "reload", What: "dof",
			Want: fmtInt(m.Dof()), Got: fmtInt(c.Dof())}
	}
	engine, err := dynamics.New(c, m.backend)
	if err != nil {
		return errors.Wrap(err, "reload")
	}
	m.chain, m.engine, m.snap = c, engine, nil
	m.logger.Infow("model reloaded", "model", m.name, "links", len(c.Links()))
	return nil
}

func (m *Model) current(op string) (*snapshot, error) {
	if m.snap == nil {
		return nil, errors.Wrap(dynamo.ErrStaleState, op)
	}
	return m.snap, nil
}

func copySym(s *mat.SymDense) *mat.SymDense {
	if s.IsEmpty() {
		return &mat.SymDense{}
	}
	out := mat.NewSymDense(s.SymmetricDim(), nil)
	out.CopySym(s)
	return out
}

func copyVec(v *mat.VecDense) *mat.VecDense {
	if v.IsEmpty() {
		return &mat.VecDense{}
	}
	out := mat.NewVecDense(v.Len(), nil)
	out.CopyVec(v)
	return out
}

func (m *Model) MassMatrix() (*mat.SymDense, error) {
	s, err := m.current("mass matrix")
	if err != nil {
		return nil, err
	}
	return copySym(s.m), nil
}

func (m *Model) MassMatrixInverse() (*mat.SymDense, error) {
	s, err := m.current("mass matrix inverse")
	if err != nil {
		return nil, err
	}
	return copySym(s.mInv), nil
}

// GravityVector returns g at the last update. With an argument it is
// recomputed for that gravity field instead of the model's own.
func (m *Model) GravityVector(gravity ...mgl64.Vec3) (*mat.VecDense, error) {
	s, err := m.current("gravity vector")
	if err != nil {
		return nil, err
	}
	if len(gravity) == 0 {
		return copyVec(s.g), nil
	}
	return m.engine.Gravity(s.q, gravity[0])
}

func (m *Model) CoriolisForce() (*mat.VecDense, error) {
	s, err := m.current("coriolis force")
	if err != nil {
		return nil, err
	}
	return copyVec(s.b), nil
}

// Conditioning reports whether the last mass-matrix inversion was regularized.
func (m *Model) Conditioning() (dynamics.Conditioning, error) {
	s, err := m.current("conditioning")
	if err != nil {
		return dynamics.Conditioning{}, err
	}
	return s.cond, nil
}

// Frames returns the kinematic snapshot of the last update.
func (m *Model) Frames() (*chain.Frames, error) {
	s, err := m.current("frames")
	if err != nil {
		return nil, err
	}
	return s.frames, nil
}

// J returns the 6 x dof Jacobian of point p on link, linear rows first.
func (m *Model) J(link string, p mgl64.Vec3) (*mat.Dense, error) {
	s, err := m.current("jacobian")
	if err != nil {
		return nil, err
	}
	return s.frames.Jacobian(link, p)
}

func (m *Model) Jv(link string, p mgl64.Vec3) (*mat.Dense, error) {
	s, err := m.current("linear jacobian")
	if err != nil {
		return nil, err
	}
	return s.frames.LinearJacobian(link, p)
}

func (m *Model) Jw(link string) (*mat.Dense, error) {
	s, err := m.current("angular jacobian")
	if err != nil {
		return nil, err
	}
	return s.frames.AngularJacobian(link)
}

func (m *Model) Transform(link string) (spatial.Transform, error) {
	s, err := m.current("transform")
	if err != nil {
		return spatial.Transform{}, err
	}
	return s.frames.Transform(link)
}

func (m *Model) Position(link string, p mgl64.Vec3) (mgl64.Vec3, error) {
	s, err := m.current("position")
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return s.frames.Position(link, p)
}

func (m *Model) LinearVelocity(link string, p mgl64.Vec3) (mgl64.Vec3, error) {
	s, err := m.current("linear velocity")
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return s.frames.Velocity(link, p)
}

func (m *Model) LinearAcceleration(link string, p mgl64.Vec3) (mgl64.Vec3, error) {
	s, err := m.current("linear acceleration")
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return s.frames.Acceleration(link, p)
}

func (m *Model) Rotation(link string) (mgl64.Mat3, error) {
	s, err := m.current("rotation")
	if err != nil {
		return mgl64.Mat3{}, err
	}
	return s.frames.Rotation(link)
}

func (m *Model) AngularVelocity(link string) (mgl64.Vec3, error) {
	s, err := m.current("angular velocity")
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return s.frames.AngularVelocity(link)
}

func (m *Model) AngularAcceleration(link string) (mgl64.Vec3, error) {
	s, err := m.current("angular acceleration")
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return s.frames.AngularAcceleration(link)
}

// Projector returns the operational-space projector of the last update.
func (m *Model) Projector() (*opspace.Projector, error) {
	s, err := m.current("projector")
	if err != nil {
		return nil, err
	}
	return s.proj, nil
}

// Task computes Lambda, Jbar and N for J in one pass.
func (m *Model) Task(J mat.Matrix) (*opspace.Task, error) {
	p, err := m.Projector()
	if err != nil {
		return nil, err
	}
	return p.Task(J)
}

func (m *Model) TaskInertia(J mat.Matrix) (*mat.SymDense, error) {
	p, err := m.Projector()
	if err != nil {
		return nil, err
	}
	return p.TaskInertia(J)
}

func (m *Model) DynConsistentInverseJacobian(J mat.Matrix) (*mat.Dense, error) {
	p, err := m.Projector()
	if err != nil {
		return nil, err
	}
	return p.DynConsistentInverse(J)
}

func (m *Model) NullspaceMatrix(J mat.Matrix) (*mat.Dense, error) {
	p, err := m.Projector()
	if err != nil {
		return nil, err
	}
	return p.Nullspace(J)
}

func (m *Model) NullspaceMatrixAfter(J, nPrec mat.Matrix) (*mat.Dense, error) {
	p, err := m.Projector()
	if err != nil {
		return nil, err
	}
	return p.NullspaceAfter(J, nPrec)
}

// KineticEnergy returns 0.5 * dq^T * M * dq at the last update.
func (m *Model) KineticEnergy() (float64, error) {
	s, err := m.current("kinetic energy")
	if err != nil {
		return 0, err
	}
	return dynamics.KineticEnergy(s.m, s.dq)
}

// PotentialEnergy returns the gravitational potential at the last update.
func (m *Model) PotentialEnergy() (float64, error) {
	s, err := m.current("potential energy")
	if err != nil {
		return 0, err
	}
	return dynamics.PotentialEnergy(m.chain, s.q, m.gravity)
}

func fmtInt(n int) string {
	return strconv.Itoa(n)
}
