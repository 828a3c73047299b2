// Package experiment assembles a runnable simulation from a config: world,
// model, controller, sensors and metrics.
package experiment

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/config"
	"github.com/san-kum/rbdsim/internal/integrators"
	"github.com/san-kum/rbdsim/internal/metrics"
	"github.com/san-kum/rbdsim/internal/model"
	"github.com/san-kum/rbdsim/internal/sensor"
	"github.com/san-kum/rbdsim/internal/sim"
	"github.com/san-kum/rbdsim/internal/storage"
)

type Experiment struct {
	cfg    *config.Config
	chain  *chain.Chain
	world  *sim.World
	model  *model.Model
	loop   *sim.Loop
	logger *zap.SugaredLogger
}

// New validates cfg and builds everything needed to run it.
func New(cfg *config.Config, logger *zap.SugaredLogger) (*Experiment, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	c, err := cfg.BuildChain()
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Run.Integrator)
	if err != nil {
		return nil, err
	}

	name := cfg.Robot.Name
	w := sim.NewWorld(
		sim.WithIntegrator(integ),
		sim.WithGravity(cfg.Gravity()),
		sim.WithDamping(cfg.Run.Damping),
		sim.WithLogger(logger.Named("world")),
	)
	if err := w.AddRobot(name, c, cfg.Run.Backend); err != nil {
		return nil, err
	}
	q0, dq0 := make([]float64, c.Dof()), make([]float64, c.Dof())
	copy(q0, cfg.Run.Q0)
	copy(dq0, cfg.Run.Dq0)
	if err := w.SetState(name, q0, dq0); err != nil {
		return nil, err
	}
	for _, p := range cfg.Pushes {
		err := w.AddPush(sim.Push{
			Robot: name,
			Link:  p.Link,
			Point: mgl64.Vec3(p.Point),
			Force: mgl64.Vec3(p.Force),
			Start: p.Start,
			End:   p.End,
		})
		if err != nil {
			return nil, err
		}
	}

	m, err := model.New(c,
		model.WithName(name),
		model.WithBackend(cfg.Run.Backend),
		model.WithGravity(cfg.Gravity()),
		model.WithLogger(logger.Named("model")),
	)
	if err != nil {
		return nil, err
	}

	ctrl, err := NewRegistry().Controller(cfg.Controller, c.Dof())
	if err != nil {
		return nil, err
	}
	loop, err := sim.NewLoop(w, m, ctrl)
	if err != nil {
		return nil, err
	}
	loop.SetLogger(logger.Named("loop"))

	for _, sc := range cfg.Sensors {
		opts := []sensor.Option{sensor.WithLogger(logger.Named("sensor"))}
		if sc.Name != "" {
			opts = append(opts, sensor.WithName(sc.Name))
		}
		if sc.Frame != "" {
			f, err := sensor.ParseFrame(sc.Frame)
			if err != nil {
				return nil, err
			}
			opts = append(opts, sensor.WithReferenceFrame(f))
		}
		if sc.Cutoff > 0 {
			opts = append(opts, sensor.WithFilter(sc.Cutoff))
		}
		fs, err := sensor.New(m, name, sc.Link, sc.Offset(), opts...)
		if err != nil {
			return nil, err
		}
		loop.AddSensor(fs)
	}
	for _, met := range metrics.Default() {
		loop.AddMetric(met)
	}

	return &Experiment{cfg: cfg, chain: c, world: w, model: m, loop: loop, logger: logger}, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Chain() *chain.Chain    { return e.chain }
func (e *Experiment) World() *sim.World      { return e.world }
func (e *Experiment) Model() *model.Model    { return e.model }
func (e *Experiment) Loop() *sim.Loop        { return e.loop }

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	e.logger.Infow("run starting",
		"robot", e.cfg.Robot.Name,
		"dof", e.chain.Dof(),
		"integrator", e.cfg.Run.Integrator,
		"controller", e.cfg.Controller.Type,
		"backend", e.cfg.Run.Backend,
		"steps", e.cfg.DynamoConfig().Steps(),
	)
	res, err := e.loop.Run(ctx, e.cfg.DynamoConfig())
	if err != nil {
		return res, err
	}
	e.logger.Infow("run finished", "steps", res.StepsTaken, "energy_drift", res.EnergyDrift)
	return res, nil
}

// Metadata describes a finished run for storage.
func (e *Experiment) Metadata(preset string, res *sim.Result) storage.RunMetadata {
	meta := storage.RunMetadata{
		Robot:       e.cfg.Robot.Name,
		Preset:      preset,
		Dt:          e.cfg.Run.Dt,
		Duration:    e.cfg.Run.Duration,
		Integrator:  e.cfg.Run.Integrator,
		Controller:  e.cfg.Controller.Type,
		Backend:     e.cfg.Run.Backend.String(),
		Joints:      e.chain.JointNames(),
		Sensors:     []string{},
		EnergyDrift: res.EnergyDrift,
		Metrics:     res.Metrics,
	}
	for _, s := range e.loop.Sensors() {
		meta.Sensors = append(meta.Sensors, s.Name())
	}
	return meta
}
