// Package optim tunes controller gains by exhaustive grid search over
// simulated runs.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/rbdsim/internal/config"
	"github.com/san-kum/rbdsim/internal/experiment"
)

// Builder returns a fresh config for each candidate.
type Builder func() (*config.Config, error)

// Result is the best point found.
type Result struct {
	Params map[string]float64
	Value  float64
	Trials int
	Failed int
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	// Maximize flips the objective.
	Maximize bool
	logger   *zap.SugaredLogger
}

// NewGridSearch searches every combination of ranges[i] for params[i].
func NewGridSearch(params []string, ranges [][]float64, logger *zap.SugaredLogger) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, errors.Errorf("optim: %d params with %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, errors.Errorf("optim: empty range for %s", params[i])
		}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &GridSearch{paramNames: params, ranges: ranges, logger: logger}, nil
}

// Search runs one experiment per grid point, with the point's values set as
// controller params, and keeps the one with the best metric. Runs that fail
// are skipped; an error is returned only when none succeed or ctx ends.
func (g *GridSearch) Search(ctx context.Context, build Builder, metricName string) (*Result, error) {
	res := &Result{Value: math.Inf(1)}
	if g.Maximize {
		res.Value = math.Inf(-1)
	}
	var errs error
	err := g.searchRecursive(ctx, 0, map[string]float64{}, func(params map[string]float64) error {
		res.Trials++
		val, err := g.trial(ctx, build, params, metricName)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failed++
			errs = multierr.Append(errs, err)
			g.logger.Debugw("trial failed", "params", params, "error", err)
			return nil
		}
		g.logger.Debugw("trial", "params", params, metricName, val)
		if g.better(val, res.Value) {
			res.Value = val
			res.Params = copyParams(params)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Params == nil {
		return nil, errors.Wrap(errs, "optim: no trial succeeded")
	}
	return res, nil
}

func (g *GridSearch) better(v, best float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if g.Maximize {
		return v > best
	}
	return v < best
}

func (g *GridSearch) trial(ctx context.Context, build Builder, params map[string]float64, metricName string) (float64, error) {
	cfg, err := build()
	if err != nil {
		return 0, err
	}
	if cfg.Controller.Params == nil {
		cfg.Controller.Params = map[string]float64{}
	}
	for k, v := range params {
		cfg.Controller.Params[k] = v
	}
	exp, err := experiment.New(cfg, nil)
	if err != nil {
		return 0, err
	}
	out, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	val, ok := out.Metrics[metricName]
	if !ok {
		names := make([]string, 0, len(out.Metrics))
		for n := range out.Metrics {
			names = append(names, n)
		}
		sort.Strings(names)
		return 0, errors.Errorf("optim: no metric %q (have %v)", metricName, names)
	}
	return val, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		return visit(current)
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := copyParams(current)
		next[name] = val
		if err := g.searchRecursive(ctx, depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

func copyParams(p map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
