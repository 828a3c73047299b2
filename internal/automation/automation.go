// Package automation runs batches of experiments: scripted scenarios read from
// YAML and Monte Carlo trials over perturbed initial states.
package automation

import (
	"context"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rbdsim/internal/config"
	"github.com/san-kum/rbdsim/internal/experiment"
	"github.com/san-kum/rbdsim/internal/sim"
	"github.com/san-kum/rbdsim/internal/storage"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep names a preset or config file and overrides some of its
// fields. Zero values leave the base untouched.
type ScenarioStep struct {
	Preset     string             `yaml:"preset"`
	Config     string             `yaml:"config"`
	Integrator string             `yaml:"integrator"`
	Controller string             `yaml:"controller"`
	Duration   float64            `yaml:"duration"`
	Dt         float64            `yaml:"dt"`
	Q0         []float64          `yaml:"q0,flow"`
	Params     map[string]float64 `yaml:"params"`
	Save       bool               `yaml:"save"`
}

// StepResult is one finished scenario step.
type StepResult struct {
	Step   int
	Name   string
	Result *sim.Result
	RunID  string
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, errors.Wrap(err, "scenario")
	}
	if len(scenario.Steps) == 0 {
		return nil, errors.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Build resolves the step's base config and applies its overrides.
func (s ScenarioStep) Build() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case s.Config != "":
		c, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	case s.Preset != "":
		cfg = config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, errors.Errorf("unknown preset: %s (available: %v)", s.Preset, config.ListPresets())
		}
	default:
		return nil, errors.New("step needs a preset or a config")
	}
	if s.Integrator != "" {
		cfg.Run.Integrator = s.Integrator
	}
	if s.Controller != "" {
		cfg.Controller.Type = s.Controller
	}
	if s.Duration > 0 {
		cfg.Run.Duration = s.Duration
	}
	if s.Dt > 0 {
		cfg.Run.Dt = s.Dt
	}
	if s.Q0 != nil {
		cfg.Run.Q0 = append([]float64(nil), s.Q0...)
	}
	if len(s.Params) > 0 && cfg.Controller.Params == nil {
		cfg.Controller.Params = map[string]float64{}
	}
	for k, v := range s.Params {
		cfg.Controller.Params[k] = v
	}
	return cfg, nil
}

// RunScenario executes all steps in order. Steps with Save set are stored in
// st, which may be nil when no step saves. It stops at the first failure and
// returns the steps finished so far.
func RunScenario(ctx context.Context, scenario *Scenario, st *storage.Store, logger *zap.SugaredLogger) ([]StepResult, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Build()
		if err != nil {
			return results, errors.Wrapf(err, "step %d", i+1)
		}
		logger.Infow("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "robot", cfg.Robot.Name)

		exp, err := experiment.New(cfg, logger)
		if err != nil {
			return results, errors.Wrapf(err, "step %d setup", i+1)
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, errors.Wrapf(err, "step %d run", i+1)
		}

		sr := StepResult{Step: i + 1, Name: cfg.Robot.Name, Result: res}
		if step.Save {
			if st == nil {
				return results, errors.Errorf("step %d: save requested without a store", i+1)
			}
			id, err := st.Save(exp.Metadata(step.Preset, res), res.Samples)
			if err != nil {
				return results, errors.Wrapf(err, "step %d save", i+1)
			}
			sr.RunID = id
		}
		results = append(results, sr)
	}
	return results, nil
}

// MonteCarloConfig perturbs the initial joint positions of Base uniformly by
// up to Perturbation in each joint.
type MonteCarloConfig struct {
	Base         func() (*config.Config, error)
	Perturbation float64
	NumTrials    int
	// Metric is summarized across trials.
	Metric string
	// Bound is the joint speed above which a trial counts as unstable.
	Bound float64
	Seed  int64
}

// MonteCarloResult is one trial.
type MonteCarloResult struct {
	TrialID int
	Q0      []float64
	FinalQ  []float64
	Metric  float64
	Stable  bool
}

// RunMonteCarlo executes NumTrials runs with random initial perturbations.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, logger *zap.SugaredLogger) ([]MonteCarloResult, error) {
	if cfg.NumTrials <= 0 {
		return nil, errors.Errorf("monte carlo: %d trials", cfg.NumTrials)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	bound := cfg.Bound
	if bound <= 0 {
		bound = 1e3
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	results := make([]MonteCarloResult, 0, cfg.NumTrials)

	for trial := 0; trial < cfg.NumTrials; trial++ {
		base, err := cfg.Base()
		if err != nil {
			return nil, err
		}
		c, err := base.BuildChain()
		if err != nil {
			return nil, err
		}
		q0 := make([]float64, c.Dof())
		copy(q0, base.Run.Q0)
		for i := range q0 {
			q0[i] += (rng.Float64() - 0.5) * 2 * cfg.Perturbation
		}
		base.Run.Q0 = q0

		exp, err := experiment.New(base, nil)
		if err != nil {
			return nil, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Debugw("trial diverged", "trial", trial, "error", err)
			results = append(results, MonteCarloResult{TrialID: trial, Q0: q0, Metric: math.NaN()})
			continue
		}

		final := res.Final()
		stable := true
		for _, v := range final.Dq {
			if math.IsNaN(v) || math.Abs(v) > bound {
				stable = false
				break
			}
		}
		val := math.NaN()
		if cfg.Metric != "" {
			if v, ok := res.Metrics[cfg.Metric]; ok {
				val = v
			}
		}
		results = append(results, MonteCarloResult{
			TrialID: trial,
			Q0:      q0,
			FinalQ:  append([]float64(nil), final.Q...),
			Metric:  val,
			Stable:  stable,
		})

		if (trial+1)%10 == 0 {
			logger.Infow("monte carlo", "done", trial+1, "of", cfg.NumTrials)
		}
	}
	return results, nil
}

// Summary aggregates Monte Carlo trials.
type Summary struct {
	Stable   int
	Unstable int
	Mean     float64
	StdDev   float64
}

// MonteCarloStats counts stable trials and summarizes the metric over the
// stable ones.
func MonteCarloStats(results []MonteCarloResult) Summary {
	var (
		s    Summary
		vals []float64
	)
	for _, r := range results {
		if r.Stable {
			s.Stable++
			if !math.IsNaN(r.Metric) {
				vals = append(vals, r.Metric)
			}
		} else {
			s.Unstable++
		}
	}
	switch len(vals) {
	case 0:
		s.Mean, s.StdDev = math.NaN(), math.NaN()
	case 1:
		s.Mean = vals[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	}
	return s
}
