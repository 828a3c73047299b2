// Package sim is a reference simulation world and the fixed-step driver
// loop that keeps a model and its sensors in sync with it.
//
// The world integrates each robot's forward dynamics and reports scripted
// pushes as contact forces. It does no collision detection.
package sim

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamics"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/integrators"
	"github.com/san-kum/rbdsim/internal/sensor"
	"github.com/san-kum/rbdsim/internal/spatial"
)

// Push is a scripted external force on a link, active for Start <= t < End.
// Point is given in the link frame and Force in the base frame.
type Push struct {
	Robot string
	Link  string
	Point mgl64.Vec3
	Force mgl64.Vec3
	Start float64
	End   float64
}

func (p Push) Active(t float64) bool {
	return t >= p.Start && t < p.End
}

type WorldOption func(*World)

func WithIntegrator(integ dynamo.Integrator) WorldOption {
	return func(w *World) { w.integrator = integ }
}

func WithGravity(g mgl64.Vec3) WorldOption {
	return func(w *World) { w.gravity = g }
}

// WithDamping sets a viscous joint damping coefficient applied to every
// moving joint of every robot.
func WithDamping(d float64) WorldOption {
	return func(w *World) { w.damping = d }
}

func WithLogger(l *zap.SugaredLogger) WorldOption {
	return func(w *World) { w.logger = l }
}

type robot struct {
	name   string
	chain  *chain.Chain
	engine dynamics.Engine
	q      dynamo.State
	dq     dynamo.State
	ddq    dynamo.State
	tau    dynamo.Control
	frames *chain.Frames
}

// World holds robots and pushes and advances them in time. It is not safe for
// concurrent use.
type World struct {
	integrator dynamo.Integrator
	gravity    mgl64.Vec3
	damping    float64
	logger     *zap.SugaredLogger

	robots map[string]*robot
	pushes []Push
	time   float64
}

func NewWorld(opts ...WorldOption) *World {
	w := &World{
		integrator: integrators.NewRK4(),
		gravity:    mgl64.Vec3(dynamo.StandardGravity),
		logger:     zap.NewNop().Sugar(),
		robots:     make(map[string]*robot),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) Time() float64       { return w.time }
func (w *World) Gravity() mgl64.Vec3 { return w.gravity }

// Robots returns the robot names in sorted order.
func (w *World) Robots() []string {
	names := make([]string, 0, len(w.robots))
	for name := range w.robots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddRobot places a chain in the world at q = dq = 0.
func (w *World) AddRobot(name string, c *chain.Chain, backend dynamics.Backend) error {
	if _, ok := w.robots[name]; ok {
		return errors.Errorf("sim: robot %q already exists", name)
	}
	engine, err := dynamics.New(c, backend)
	if err != nil {
		return errors.Wrapf(err, "sim: robot %s", name)
	}
	n := c.Dof()
	r := &robot{
		name:   name,
		chain:  c,
		engine: engine,
		q:      dynamo.Zeros(n),
		dq:     dynamo.Zeros(n),
		ddq:    dynamo.Zeros(n),
		tau:    make(dynamo.Control, n),
	}
	if err := w.refresh(r); err != nil {
		return err
	}
	w.robots[name] = r
	w.logger.Debugw("robot added", "robot", name, "dof", n, "backend", backend)
	return nil
}

// AddPush schedules an external force. The robot and link must exist.
func (w *World) AddPush(p Push) error {
	r, err := w.robot(p.Robot)
	if err != nil {
		return err
	}
	if !r.chain.HasLink(p.Link) {
		return dynamo.UnknownLink("add push", p.Link)
	}
	if p.End <= p.Start {
		return errors.Errorf("sim: push on %s ends at %g before it starts at %g", p.Link, p.End, p.Start)
	}
	w.pushes = append(w.pushes, p)
	return w.refresh(r)
}

func (w *World) robot(name string) (*robot, error) {
	r, ok := w.robots[name]
	if !ok {
		return nil, errors.Errorf("sim: unknown robot %q", name)
	}
	return r, nil
}

func (w *World) JointPositions(name string) (dynamo.State, error) {
	r, err := w.robot(name)
	if err != nil {
		return nil, err
	}
	return r.q.Clone(), nil
}

func (w *World) JointVelocities(name string) (dynamo.State, error) {
	r, err := w.robot(name)
	if err != nil {
		return nil, err
	}
	return r.dq.Clone(), nil
}

// JointAccelerations returns the forward-dynamics acceleration at the
// current state under the current torques.
func (w *World) JointAccelerations(name string) (dynamo.State, error) {
	r, err := w.robot(name)
	if err != nil {
		return nil, err
	}
	return r.ddq.Clone(), nil
}

func (w *World) SetJointPosition(name string, i int, v float64) error {
	r, err := w.robot(name)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(r.q) {
		return errors.Wrapf(dynamo.ErrDimensionMismatch, "sim: joint %d of %d", i, len(r.q))
	}
	r.q[i] = v
	return w.refresh(r)
}

// SetState overwrites a robot's joint positions and velocities.
func (w *World) SetState(name string, q, dq []float64) error {
	r, err := w.robot(name)
	if err != nil {
		return err
	}
	n := r.chain.Dof()
	if err := dynamo.CheckLen("set state", "q", q, n); err != nil {
		return err
	}
	if err := dynamo.CheckLen("set state", "dq", dq, n); err != nil {
		return err
	}
	copy(r.q, q)
	copy(r.dq, dq)
	return w.refresh(r)
}

// SetTorques sets the joint torques held constant over the next Integrate.
func (w *World) SetTorques(name string, tau dynamo.Control) error {
	r, err := w.robot(name)
	if err != nil {
		return err
	}
	if err := dynamo.CheckLen("set torques", "tau", tau, r.chain.Dof()); err != nil {
		return err
	}
	copy(r.tau, tau)
	return w.refresh(r)
}

// ContactForcesOnLink reports the pushes active on the link at the current
// time, with application points in the base frame.
func (w *World) ContactForcesOnLink(name, link string) ([]sensor.Contact, error) {
	r, err := w.robot(name)
	if err != nil {
		return nil, err
	}
	if !r.chain.HasLink(link) {
		return nil, dynamo.UnknownLink("contact forces", link)
	}
	var out []sensor.Contact
	for _, p := range w.pushes {
		if p.Robot != name || p.Link != link || !p.Active(w.time) {
			continue
		}
		pos, err := r.frames.Position(link, p.Point)
		if err != nil {
			return nil, err
		}
		out = append(out, sensor.Contact{Point: spatial.ToR3(pos), Force: spatial.ToR3(p.Force)})
	}
	return out, nil
}

// Integrate advances every robot by dt with the configured integrator.
func (w *World) Integrate(dt float64) error {
	if dt <= 0 {
		return errors.Errorf("sim: dt must be positive, got %g", dt)
	}
	for _, name := range w.Robots() {
		r := w.robots[name]
		n := r.chain.Dof()
		if n == 0 {
			continue
		}
		sys := &forward{world: w, robot: r}
		x := make(dynamo.State, 0, 2*n)
		x = append(append(x, r.q...), r.dq...)

		next := w.integrator.Step(sys, x, r.tau, w.time, dt)
		if sys.err != nil {
			return errors.Wrapf(sys.err, "sim: robot %s", name)
		}
		if !next.IsValid() {
			return errors.Wrapf(dynamo.ErrInvalidState, "sim: robot %s at t=%.4f", name, w.time+dt)
		}
		copy(r.q, next[:n])
		copy(r.dq, next[n:])
	}
	w.time += dt
	for _, r := range w.robots {
		if err := w.refresh(r); err != nil {
			return err
		}
	}
	return nil
}

// refresh recomputes the cached frames and acceleration at the robot's
// current state.
func (w *World) refresh(r *robot) error {
	f, err := r.chain.Kinematics(r.q, r.dq, nil)
	if err != nil {
		return err
	}
	r.frames = f
	ddq, err := w.accelerations(r, r.q, r.dq, r.tau, w.time)
	if err != nil {
		return errors.Wrapf(err, "sim: robot %s", r.name)
	}
	r.ddq = ddq
	return nil
}

// accelerations solves M ddq = tau + sum(Jv^T f) - b - g - damping*dq.
func (w *World) accelerations(r *robot, q, dq []float64, tau dynamo.Control, t float64) (dynamo.State, error) {
	n := r.chain.Dof()
	if n == 0 {
		return dynamo.State{}, nil
	}
	m, err := r.engine.MassMatrix(q)
	if err != nil {
		return nil, err
	}
	reg, err := dynamics.Regularize(m)
	if err != nil {
		return nil, err
	}
	bias, err := r.engine.InverseDynamics(q, dq, nil, w.gravity)
	if err != nil {
		return nil, err
	}

	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		rhs.SetVec(i, tau[i]-bias.AtVec(i)-w.damping*dq[i])
	}

	var frames *chain.Frames
	for _, p := range w.pushes {
		if p.Robot != r.name || !p.Active(t) {
			continue
		}
		if frames == nil {
			if frames, err = r.chain.Kinematics(q, nil, nil); err != nil {
				return nil, err
			}
		}
		jv, err := frames.LinearJacobian(p.Link, p.Point)
		if err != nil {
			return nil, err
		}
		var gen mat.VecDense
		gen.MulVec(jv.T(), mat.NewVecDense(3, []float64{p.Force[0], p.Force[1], p.Force[2]}))
		rhs.AddVec(rhs, &gen)
	}

	var ddq mat.VecDense
	ddq.MulVec(reg.Inverse, rhs)
	return dynamo.State(ddq.RawVector().Data), nil
}

// forward exposes one robot's forward dynamics over x = [q; dq].
type forward struct {
	world *World
	robot *robot
	err   error
}

func (f *forward) StateDim() int   { return 2 * f.robot.chain.Dof() }
func (f *forward) ControlDim() int { return f.robot.chain.Dof() }

func (f *forward) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := f.robot.chain.Dof()
	out := make(dynamo.State, 2*n)
	copy(out, x[n:])
	ddq, err := f.world.accelerations(f.robot, x[:n], x[n:], u, t)
	if err != nil {
		if f.err == nil {
			f.err = err
		}
		for i := n; i < 2*n; i++ {
			out[i] = math.NaN()
		}
		return out
	}
	copy(out[n:], ddq)
	return out
}
