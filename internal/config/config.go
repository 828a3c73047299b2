// Package config is the YAML description of a robot and a simulation run.
package config

import (
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamics"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/integrators"
	"github.com/san-kum/rbdsim/internal/sensor"
	"github.com/san-kum/rbdsim/internal/spatial"
)

const (
	DefaultDt         = 0.001
	DefaultDuration   = 5.0
	DefaultIntegrator = "rk4"
	DefaultController = "none"
	DefaultLogEvery   = 500
)

// Controller types understood by the experiment registry.
var Controllers = []string{"none", "gravity", "pid", "lqr", "opspace"}

type Config struct {
	Robot      RobotConfig      `yaml:"robot"`
	Run        RunConfig        `yaml:"run"`
	Sensors    []SensorConfig   `yaml:"sensors,omitempty"`
	Pushes     []PushConfig     `yaml:"pushes,omitempty"`
	Controller ControllerConfig `yaml:"controller"`
}

type RobotConfig struct {
	Name  string       `yaml:"name"`
	Root  string       `yaml:"root"`
	Links []LinkConfig `yaml:"links"`
}

type LinkConfig struct {
	Name   string      `yaml:"name"`
	Parent string      `yaml:"parent"`
	Joint  JointConfig `yaml:"joint"`
	Mass   float64     `yaml:"mass"`
	COM    [3]float64  `yaml:"com,flow"`
	// Inertia is the diagonal of the rotational inertia about the COM.
	Inertia [3]float64 `yaml:"inertia,flow"`
}

type JointConfig struct {
	Type  chain.JointType `yaml:"type"`
	Axis  [3]float64      `yaml:"axis,flow"`
	XYZ   [3]float64      `yaml:"xyz,flow"`
	RPY   [3]float64      `yaml:"rpy,flow"`
	Limit chain.Limit     `yaml:"limit,omitempty,flow"`
}

type RunConfig struct {
	Dt         float64          `yaml:"dt"`
	Duration   float64          `yaml:"duration"`
	Integrator string           `yaml:"integrator"`
	Backend    dynamics.Backend `yaml:"backend"`
	Gravity    [3]float64       `yaml:"gravity,flow"`
	Damping    float64          `yaml:"damping"`
	Q0         []float64        `yaml:"q0,flow,omitempty"`
	Dq0        []float64        `yaml:"dq0,flow,omitempty"`
	LogEvery   int              `yaml:"log_every"`
}

type SensorConfig struct {
	Name  string     `yaml:"name"`
	Link  string     `yaml:"link"`
	XYZ   [3]float64 `yaml:"xyz,flow"`
	RPY   [3]float64 `yaml:"rpy,flow"`
	Frame string     `yaml:"frame,omitempty"`
	// Cutoff is the low-pass cutoff as a fraction of the sample rate; 0
	// disables filtering.
	Cutoff float64 `yaml:"cutoff,omitempty"`
}

type PushConfig struct {
	Link  string     `yaml:"link"`
	Point [3]float64 `yaml:"point,flow"`
	Force [3]float64 `yaml:"force,flow"`
	Start float64    `yaml:"start"`
	End   float64    `yaml:"end"`
}

type ControllerConfig struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
	// Target is the joint target of pid and lqr.
	Target []float64 `yaml:"target,flow,omitempty"`
	// Link, Point, Goal and GoalRPY define the opspace task.
	Link    string      `yaml:"link,omitempty"`
	Point   [3]float64  `yaml:"point,flow,omitempty"`
	Goal    [3]float64  `yaml:"goal,flow,omitempty"`
	GoalRPY *[3]float64 `yaml:"goal_rpy,flow,omitempty"`
}

func DefaultRun() RunConfig {
	return RunConfig{
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Integrator: DefaultIntegrator,
		Backend:    dynamics.Composite,
		Gravity:    dynamo.StandardGravity,
		LogEvery:   DefaultLogEvery,
	}
}

// DefaultConfig is the pendulum preset.
func DefaultConfig() *Config {
	return Pendulum()
}

// Load reads a YAML file. Unset run fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{Run: DefaultRun(), Controller: ControllerConfig{Type: DefaultController}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// BuildChain turns the robot description into a chain.
func (c *Config) BuildChain() (*chain.Chain, error) {
	specs := make([]chain.LinkSpec, len(c.Robot.Links))
	for i, l := range c.Robot.Links {
		specs[i] = chain.LinkSpec{
			Name:   l.Name,
			Parent: l.Parent,
			Joint: chain.Joint{
				Name:   l.Name + "_joint",
				Type:   l.Joint.Type,
				Axis:   mgl64.Vec3(l.Joint.Axis),
				Origin: spatial.NewTransform(l.Joint.XYZ, l.Joint.RPY),
				Limit:  l.Joint.Limit,
			},
			Inertia: spatial.Diagonal(l.Mass, mgl64.Vec3(l.COM), l.Inertia[0], l.Inertia[1], l.Inertia[2]),
		}
	}
	return chain.New(c.Robot.Root, specs...)
}

func (c *Config) Gravity() mgl64.Vec3 {
	return mgl64.Vec3(c.Run.Gravity)
}

// DynamoConfig is the driver-loop view of the run settings.
func (c *Config) DynamoConfig() dynamo.Config {
	return dynamo.Config{
		Dt:            c.Run.Dt,
		Duration:      c.Run.Duration,
		Gravity:       c.Run.Gravity,
		LogEvery:      c.Run.LogEvery,
		ValidateState: true,
	}
}

// Offset is the sensor pose in its link frame.
func (s SensorConfig) Offset() spatial.Transform {
	return spatial.NewTransform(s.XYZ, s.RPY)
}

// Validate checks the whole document and reports every problem found.
func (c *Config) Validate() error {
	var errs error
	if c.Robot.Name == "" {
		errs = multierr.Append(errs, errors.New("robot name is empty"))
	}
	ch, err := c.BuildChain()
	if err != nil {
		return multierr.Append(errs, err)
	}
	n := ch.Dof()

	if err := c.DynamoConfig().Validate(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := integrators.New(c.Run.Integrator); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Run.Damping < 0 {
		errs = multierr.Append(errs, errors.Errorf("damping must be non-negative, got %g", c.Run.Damping))
	}
	for what, v := range map[string][]float64{"q0": c.Run.Q0, "dq0": c.Run.Dq0} {
		if v != nil {
			errs = multierr.Append(errs, dynamo.CheckLen("run", what, v, n))
		}
	}

	names := map[string]bool{}
	for i, s := range c.Sensors {
		if !ch.HasLink(s.Link) {
			errs = multierr.Append(errs, errors.Wrapf(dynamo.UnknownLink("sensor", s.Link), "sensor %d", i))
		}
		if s.Frame != "" {
			if _, err := sensor.ParseFrame(s.Frame); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		if s.Cutoff < 0 || s.Cutoff >= 0.5 {
			errs = multierr.Append(errs, errors.Errorf("sensor %d: cutoff %g outside [0, 0.5)", i, s.Cutoff))
		}
		if s.Name != "" {
			if names[s.Name] {
				errs = multierr.Append(errs, errors.Errorf("sensor name %q used twice", s.Name))
			}
			names[s.Name] = true
		}
	}
	for i, p := range c.Pushes {
		if !ch.HasLink(p.Link) {
			errs = multierr.Append(errs, errors.Wrapf(dynamo.UnknownLink("push", p.Link), "push %d", i))
		}
		if p.End <= p.Start {
			errs = multierr.Append(errs, errors.Errorf("push %d: end %g not after start %g", i, p.End, p.Start))
		}
	}

	errs = multierr.Append(errs, c.validateController(ch))
	return errs
}

func (c *Config) validateController(ch *chain.Chain) error {
	ctl := c.Controller
	switch ctl.Type {
	case "none", "gravity":
	case "pid", "lqr":
		if ctl.Target != nil {
			return dynamo.CheckLen("controller", "target", ctl.Target, ch.Dof())
		}
	case "opspace":
		if !ch.HasLink(ctl.Link) {
			return errors.Wrap(dynamo.UnknownLink("controller", ctl.Link), "opspace task")
		}
	default:
		return errors.Errorf("unknown controller %q (have %v)", ctl.Type, Controllers)
	}
	return nil
}
