package experiment

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/config"
	"github.com/san-kum/rbdsim/internal/control"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/sim"
	"github.com/san-kum/rbdsim/internal/spatial"
)

type controllerFactory func(cfg config.ControllerConfig, dof int) (sim.Controller, error)

type Registry struct {
	controllers map[string]controllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{controllers: make(map[string]controllerFactory)}

	r.controllers["none"] = func(config.ControllerConfig, int) (sim.Controller, error) {
		return control.NewNone(), nil
	}
	r.controllers["gravity"] = func(config.ControllerConfig, int) (sim.Controller, error) {
		return control.NewGravityCompensation(), nil
	}
	r.controllers["pid"] = func(cfg config.ControllerConfig, dof int) (sim.Controller, error) {
		p := control.NewJointPID(10, 0, 5, cfg.Target)
		return p, tune(p, cfg.Params)
	}
	r.controllers["lqr"] = func(cfg config.ControllerConfig, dof int) (sim.Controller, error) {
		kq, kd := param(cfg.Params, "Kq", 10), param(cfg.Params, "Kd", 5)
		target := dynamo.Zeros(2 * dof)
		copy(target, cfg.Target)
		return control.NewDiagonalLQR(kq, kd, dof, target), nil
	}
	r.controllers["opspace"] = func(cfg config.ControllerConfig, dof int) (sim.Controller, error) {
		c := control.NewOperationalSpace(cfg.Link, mgl64.Vec3(cfg.Point), mgl64.Vec3(cfg.Goal))
		if cfg.GoalRPY != nil {
			rot := spatial.RotationRPY(cfg.GoalRPY[0], cfg.GoalRPY[1], cfg.GoalRPY[2])
			c.TargetRotation = &rot
		}
		c.Posture = cfg.Target
		return c, tune(c, cfg.Params)
	}
	return r
}

func (r *Registry) Controller(cfg config.ControllerConfig, dof int) (sim.Controller, error) {
	build, ok := r.controllers[cfg.Type]
	if !ok {
		return nil, errors.Errorf("unknown controller %q (have %v)", cfg.Type, r.Controllers())
	}
	return build(cfg, dof)
}

func (r *Registry) Controllers() []string {
	names := make([]string, 0, len(r.controllers))
	for name := range r.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func tune(c control.Tunable, params map[string]float64) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.SetParam(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func param(params map[string]float64, name string, def float64) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	return def
}
