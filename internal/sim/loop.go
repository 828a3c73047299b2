package sim

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
	"github.com/san-kum/rbdsim/internal/sensor"
)

// Controller produces the joint torques for the next step from the model
// state at its last update.
type Controller interface {
	Torques(m *model.Model, t float64) (dynamo.Control, error)
}

type Result struct {
	Samples     []dynamo.Sample
	Metrics     map[string]float64
	StepsTaken  int
	EnergyDrift float64
}

// Final returns the last recorded sample.
func (r *Result) Final() dynamo.Sample {
	if len(r.Samples) == 0 {
		return dynamo.Sample{}
	}
	return r.Samples[len(r.Samples)-1]
}

// Loop drives one robot of a World: each step it integrates, pulls the joint
// state into the model, updates the model, computes the next torques and
// refreshes the sensors.
type Loop struct {
	world      *World
	model      *model.Model
	controller Controller
	sensors    []*sensor.ForceSensor
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	logger     *zap.SugaredLogger
}

// NewLoop binds m to the world robot of the same name.
func NewLoop(w *World, m *model.Model, c Controller) (*Loop, error) {
	r, err := w.robot(m.Name())
	if err != nil {
		return nil, err
	}
	if r.chain.Dof() != m.Dof() {
		return nil, errors.Wrapf(dynamo.ErrDimensionMismatch,
			"sim: robot %s has %d dof, model has %d", m.Name(), r.chain.Dof(), m.Dof())
	}
	return &Loop{
		world:      w,
		model:      m,
		controller: c,
		logger:     m.Logger(),
	}, nil
}

func (l *Loop) AddSensor(s *sensor.ForceSensor)     { l.sensors = append(l.sensors, s) }
func (l *Loop) AddMetric(m dynamo.Metric)           { l.metrics = append(l.metrics, m) }
func (l *Loop) AddObserver(o dynamo.Observer)       { l.observers = append(l.observers, o) }
func (l *Loop) SetLogger(logger *zap.SugaredLogger) { l.logger = logger }

func (l *Loop) Model() *model.Model            { return l.model }
func (l *Loop) Sensors() []*sensor.ForceSensor { return l.sensors }

// Run executes cfg.Steps() fixed steps. On cancellation or a failed step the
// partial result is returned with the error.
func (l *Loop) Run(ctx context.Context, cfg dynamo.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	steps := cfg.Steps()
	result := &Result{
		Samples: make([]dynamo.Sample, 0, steps+1),
		Metrics: make(map[string]float64),
	}
	for _, m := range l.metrics {
		m.Reset()
	}
	for _, s := range l.sensors {
		if err := s.Reset(); err != nil {
			return nil, err
		}
	}

	name := l.model.Name()
	t := l.world.Time()
	if err := l.pull(); err != nil {
		return nil, err
	}
	applied := make(dynamo.Control, l.model.Dof())
	if err := l.refreshSensors(); err != nil {
		return nil, err
	}
	first, err := l.sample(0, t, applied)
	if err != nil {
		return nil, err
	}
	l.record(result, first)
	tau, err := l.torques(t)
	if err != nil {
		return result, err
	}

	limitWarned := false
	for i := 1; i <= steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := l.world.SetTorques(name, tau); err != nil {
			return result, err
		}
		applied = tau
		if err := l.world.Integrate(cfg.Dt); err != nil {
			return result, dynamo.SimError{Time: t, Step: i, Message: err.Error()}
		}
		t = l.world.Time()

		if err := l.pull(); err != nil {
			return result, dynamo.SimError{Time: t, Step: i, Message: err.Error()}
		}
		if cfg.ValidateState && !limitWarned {
			if err := l.model.Chain().WithinLimits(l.model.Q()); err != nil {
				l.logger.Warnw("joint limits exceeded", "robot", name, "t", t, "error", err)
				limitWarned = true
			}
		}
		if tau, err = l.torques(t); err != nil {
			return result, dynamo.SimError{Time: t, Step: i, Message: err.Error()}
		}
		if err := l.refreshSensors(); err != nil {
			return result, dynamo.SimError{Time: t, Step: i, Message: err.Error()}
		}

		s, err := l.sample(i, t, applied)
		if err != nil {
			return result, err
		}
		l.record(result, s)
		result.StepsTaken++

		if cfg.LogEvery > 0 && i%cfg.LogEvery == 0 {
			l.logStep(s)
		}
	}

	if e0 := result.Samples[0].Energy(); e0 != 0 {
		result.EnergyDrift = math.Abs(result.Final().Energy()-e0) / math.Abs(e0)
	}
	for _, m := range l.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// pull copies the world's joint state into the model and updates it.
func (l *Loop) pull() error {
	name := l.model.Name()
	q, err := l.world.JointPositions(name)
	if err != nil {
		return err
	}
	dq, err := l.world.JointVelocities(name)
	if err != nil {
		return err
	}
	ddq, err := l.world.JointAccelerations(name)
	if err != nil {
		return err
	}
	if err := l.model.SetQ(q); err != nil {
		return err
	}
	if err := l.model.SetDq(dq); err != nil {
		return err
	}
	if err := l.model.SetDdq(ddq); err != nil {
		return err
	}
	return l.model.UpdateModel()
}

func (l *Loop) torques(t float64) (dynamo.Control, error) {
	if l.controller == nil {
		return make(dynamo.Control, l.model.Dof()), nil
	}
	tau, err := l.controller.Torques(l.model, t)
	if err != nil {
		return nil, errors.Wrap(err, "controller")
	}
	return tau, nil
}

func (l *Loop) refreshSensors() error {
	for _, s := range l.sensors {
		if err := s.Update(l.world); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) sample(step int, t float64, tau dynamo.Control) (dynamo.Sample, error) {
	s := dynamo.Sample{
		Step: step,
		Time: t,
		Q:    l.model.Q(),
		Dq:   l.model.Dq(),
		Tau:  append(dynamo.Control(nil), tau...),
	}
	var err error
	if s.Kinetic, err = l.model.KineticEnergy(); err != nil {
		return s, err
	}
	if s.Potential, err = l.model.PotentialEnergy(); err != nil {
		return s, err
	}
	for _, fs := range l.sensors {
		w := fs.Wrench()
		s.Readings = append(s.Readings, dynamo.Reading{
			Sensor: fs.Name(),
			Force:  w.Force,
			Moment: w.Moment,
		})
	}
	return s, nil
}

func (l *Loop) record(result *Result, s dynamo.Sample) {
	for _, m := range l.metrics {
		m.Observe(s)
	}
	for _, o := range l.observers {
		o.OnStep(s)
	}
	result.Samples = append(result.Samples, s)
}

func (l *Loop) logStep(s dynamo.Sample) {
	if len(s.Readings) == 0 {
		l.logger.Infow("step", "robot", l.model.Name(), "step", s.Step, "t", s.Time, "energy", s.Energy())
		return
	}
	for _, r := range s.Readings {
		l.logger.Infow("step", "robot", l.model.Name(), "step", s.Step, "t", s.Time,
			"sensor", r.Sensor, "force", r.Force, "moment", r.Moment)
	}
}
