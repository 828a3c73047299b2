package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/rbdsim/internal/analysis"
	"github.com/san-kum/rbdsim/internal/automation"
	"github.com/san-kum/rbdsim/internal/config"
	"github.com/san-kum/rbdsim/internal/dynamics"
	"github.com/san-kum/rbdsim/internal/experiment"
	"github.com/san-kum/rbdsim/internal/export"
	"github.com/san-kum/rbdsim/internal/integrators"
	"github.com/san-kum/rbdsim/internal/logging"
	"github.com/san-kum/rbdsim/internal/optim"
	"github.com/san-kum/rbdsim/internal/storage"
	"github.com/san-kum/rbdsim/internal/tui"
	"github.com/san-kum/rbdsim/internal/viz"
)

var (
	dataDir    string
	logLevel   string
	theme      string
	configFile string
	dt         float64
	duration   float64
	integrator string
	controller string
	backend    string
	noSave     bool
	columns    []string
	phaseJoint string
	column     string
	gridParams []string
	trials     int
	perturb    float64
	seed       int64
	outFile    string
	speed      float64
	plane      string
	metricName string
	maximize   bool

	// {height, width}; one per command so defaults don't collide
	plotSize    [2]int
	analyzeSize [2]int
	svgSize     [2]int

	logger *zap.SugaredLogger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rbdsim",
		Short:         "rigid-body dynamics, sensing and control lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.NewLoggerAt("rbdsim", logLevel)
			if err != nil {
				return errors.Wrap(err, "log level")
			}
			logger = l
			th, ok := viz.LookupTheme(theme)
			if !ok {
				return errors.Errorf("unknown theme %q (available: %v)", theme, viz.Themes())
			}
			viz.SetTheme(th)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rbdsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeCyberpunk.Name, "output color theme")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a simulation from a preset or config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	compareCmd := &cobra.Command{
		Use:   "compare [preset] [integrators...]",
		Short: "compare integrators on one preset",
		Args:  cobra.MinimumNArgs(1),
		RunE:  compareIntegrators,
	}
	addRunFlags(compareCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune [preset]",
		Short: "grid-search controller gains",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneController,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&gridParams, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "residual_speed", "metric to optimize")
	tuneCmd.Flags().BoolVar(&maximize, "maximize", false, "maximize the metric instead of minimizing")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted scenario from YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [preset]",
		Short: "run trials from perturbed initial positions",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	addRunFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturb", 0.1, "max joint position perturbation (rad or m)")
	monteCarloCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	monteCarloCmd.Flags().StringVar(&metricName, "metric", "residual_speed", "metric to summarize")

	watchCmd := &cobra.Command{
		Use:   "watch [preset]",
		Short: "run a simulation in a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  watchSimulation,
	}
	addRunFlags(watchCmd)
	watchCmd.Flags().Float64Var(&speed, "speed", 1, "sim seconds per wall second (0 for max)")
	watchCmd.Flags().StringVar(&plane, "plane", "xz", "view plane (xz, yz, xy)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in robots",
		RunE:  listPresets,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [preset]",
		Short: "print dof, mass matrix, gravity vector and tip jacobian at q0",
		Args:  cobra.MaximumNArgs(1),
		RunE:  inspectRobot,
	}
	inspectCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	inspectCmd.Flags().StringVar(&backend, "backend", "", "dynamics backend")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run columns",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&columns, "column", nil, "columns to plot (default: joint positions)")
	plotCmd.Flags().StringVar(&phaseJoint, "phase", "", "draw the phase portrait of this joint")
	plotCmd.Flags().IntVar(&plotSize[0], "height", 10, "plot height")
	plotCmd.Flags().IntVar(&plotSize[1], "width", 80, "plot width")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of one column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&column, "column", "", "column to analyze (default: first joint position)")
	analyzeCmd.Flags().IntVar(&analyzeSize[0], "height", 15, "plot height")
	analyzeCmd.Flags().IntVar(&analyzeSize[1], "width", 80, "plot width")

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "render run columns or a phase portrait as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  svgRun,
	}
	svgCmd.Flags().StringSliceVar(&columns, "column", nil, "columns to draw (default: joint positions)")
	svgCmd.Flags().StringVar(&phaseJoint, "phase", "", "draw the phase portrait of this joint")
	svgCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default: stdout)")
	svgCmd.Flags().IntVar(&svgSize[1], "width", 800, "image width")
	svgCmd.Flags().IntVar(&svgSize[0], "height", 400, "image height")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(runCmd, watchCmd, compareCmd, tuneCmd, scenarioCmd, monteCarloCmd, presetsCmd, inspectCmd, listCmd, plotCmd, analyzeCmd, svgCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.Error.Render("error:"), err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator,
		"integrator ("+strings.Join(integrators.Names(), ", ")+")")
	cmd.Flags().StringVar(&controller, "controller", config.DefaultController,
		"controller ("+strings.Join(config.Controllers, ", ")+")")
	cmd.Flags().StringVar(&backend, "backend", "",
		"dynamics backend ("+strings.Join(dynamics.Backends(), ", ")+")")
}

// loadConfig resolves the preset or config file, then applies flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	var (
		cfg    *config.Config
		preset string
	)
	switch {
	case configFile != "":
		c, err := config.Load(configFile)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to load config")
		}
		cfg = c
	case len(args) > 0:
		preset = args[0]
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, "", errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	default:
		preset = "pendulum"
		cfg = config.DefaultConfig()
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Run.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Run.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Run.Integrator = integrator
	}
	if flags.Changed("controller") {
		cfg.Controller.Type = controller
	}
	if flags.Changed("backend") {
		if err := cfg.Run.Backend.UnmarshalText([]byte(backend)); err != nil {
			return nil, "", err
		}
	}
	return cfg, preset, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, preset, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	res, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	final := res.Final()
	fmt.Println(viz.Header.Render(fmt.Sprintf("%s  %s / %s / %s", cfg.Robot.Name,
		cfg.Run.Integrator, cfg.Controller.Type, cfg.Run.Backend)))
	fmt.Println(viz.KeyValues([]viz.KV{
		{Key: "steps", Value: fmt.Sprintf("%d", res.StepsTaken)},
		{Key: "sim time", Value: fmt.Sprintf("%.3fs", final.Time)},
		{Key: "wall time", Value: elapsed.Round(time.Millisecond).String()},
		{Key: "final q", Value: fmt.Sprintf("%.4f", []float64(final.Q))},
		{Key: "energy drift", Value: fmt.Sprintf("%.3e", res.EnergyDrift)},
	}))
	fmt.Println()
	fmt.Println(viz.Box("metrics", viz.Metrics(res.Metrics)))

	energy := make([]float64, len(res.Samples))
	for i, s := range res.Samples {
		energy[i] = s.Energy()
	}
	fmt.Println(viz.MetricLabel.Render("energy ") + viz.Sparkline(energy, 60))

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.Save(exp.Metadata(preset, res), res.Samples)
	if err != nil {
		return err
	}
	fmt.Println(viz.Success.Render("saved ") + id)
	return nil
}

func watchSimulation(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	p, err := tui.ParsePlane(plane)
	if err != nil {
		return err
	}
	// zap output would tear the alternate screen
	exp, err := experiment.New(cfg, nil)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return tui.Watch(ctx, exp, tui.Options{Speed: speed, Plane: p})
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	names := args[1:]
	if len(names) == 0 {
		names = integrators.Names()
	}

	headers := []string{"INTEGRATOR", "FINAL Q0", "ENERGY DRIFT", "TIME"}
	var rows [][]string
	for _, name := range names {
		cfg, _, err := loadConfig(cmd, args[:1])
		if err != nil {
			return err
		}
		cfg.Run.Integrator = name
		exp, err := experiment.New(cfg, logger.Desugar().WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar())
		if err != nil {
			rows = append(rows, []string{name, viz.Error.Render(err.Error()), "", ""})
			continue
		}
		start := time.Now()
		res, err := exp.Run(context.Background())
		elapsed := time.Since(start)
		if err != nil {
			rows = append(rows, []string{name, viz.Error.Render(err.Error()), "", ""})
			continue
		}
		q0 := 0.0
		if q := res.Final().Q; len(q) > 0 {
			q0 = q[0]
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%+.6f", q0),
			fmt.Sprintf("%.2e", res.EnergyDrift),
			elapsed.Round(time.Microsecond).String(),
		})
	}
	fmt.Println(viz.Title.Render("comparing integrators for " + args[0]))
	fmt.Println(viz.Table(headers, rows))
	return nil
}

func parseGrid(specs []string) ([]string, [][]float64, error) {
	var (
		names  []string
		ranges [][]float64
	)
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, nil, errors.Errorf("bad --param %q, want name=v1,v2", spec)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "param %s", name)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func tuneController(cmd *cobra.Command, args []string) error {
	if len(gridParams) == 0 {
		return errors.New("at least one --param is required")
	}
	names, ranges, err := parseGrid(gridParams)
	if err != nil {
		return err
	}
	g, err := optim.NewGridSearch(names, ranges, logger.Named("optim"))
	if err != nil {
		return err
	}
	g.Maximize = maximize

	ctx, cancel := signalContext()
	defer cancel()

	res, err := g.Search(ctx, func() (*config.Config, error) {
		cfg, _, err := loadConfig(cmd, args)
		return cfg, err
	}, metricName)
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render(fmt.Sprintf("best %s: %.6g", metricName, res.Value)))
	fmt.Println(viz.Metrics(res.Params))
	fmt.Println(viz.Subtle.Render(fmt.Sprintf("%d trials, %d failed", res.Trials, res.Failed)))
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunScenario(ctx, sc, st, logger)
	var rows [][]string
	for _, r := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Step),
			r.Name,
			fmt.Sprintf("%d", r.Result.StepsTaken),
			fmt.Sprintf("%.2e", r.Result.EnergyDrift),
			r.RunID,
		})
	}
	fmt.Println(viz.Title.Render("scenario " + sc.Name))
	if sc.Description != "" {
		fmt.Println(viz.Subtle.Render(sc.Description))
	}
	fmt.Println(viz.Table([]string{"STEP", "ROBOT", "STEPS", "DRIFT", "RUN"}, rows))
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base: func() (*config.Config, error) {
			cfg, _, err := loadConfig(cmd, args)
			return cfg, err
		},
		Perturbation: perturb,
		NumTrials:    trials,
		Metric:       metricName,
		Seed:         seed,
	}, logger.Named("montecarlo"))
	if err != nil {
		return err
	}
	sum := automation.MonteCarloStats(results)
	metric := make([]float64, 0, len(results))
	for _, r := range results {
		metric = append(metric, r.Metric)
	}

	fmt.Println(viz.Header.Render(fmt.Sprintf("monte carlo: %d trials", len(results))))
	fmt.Println(viz.KeyValues([]viz.KV{
		{Key: "stable", Value: fmt.Sprintf("%d", sum.Stable)},
		{Key: "unstable", Value: fmt.Sprintf("%d", sum.Unstable)},
		{Key: metricName + " mean", Value: fmt.Sprintf("%.6g", sum.Mean)},
		{Key: metricName + " std", Value: fmt.Sprintf("%.6g", sum.StdDev)},
	}))
	fmt.Println(viz.MetricLabel.Render(metricName+" ") + viz.Sparkline(metric, len(metric)))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	var rows [][]string
	for _, name := range config.ListPresets() {
		cfg := config.GetPreset(name)
		c, err := cfg.BuildChain()
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%d", c.Dof()),
			strings.Join(c.JointNames(), " "),
			cfg.Controller.Type,
			fmt.Sprintf("%d", len(cfg.Sensors)),
		})
	}
	fmt.Println(viz.Table([]string{"PRESET", "DOF", "JOINTS", "CONTROLLER", "SENSORS"}, rows))
	return nil
}

func inspectRobot(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, logger)
	if err != nil {
		return err
	}
	m := exp.Model()
	c := exp.Chain()
	q0, dq0 := make([]float64, c.Dof()), make([]float64, c.Dof())
	copy(q0, cfg.Run.Q0)
	copy(dq0, cfg.Run.Dq0)
	if err := m.SetQ(q0); err != nil {
		return err
	}
	if err := m.SetDq(dq0); err != nil {
		return err
	}
	if err := m.UpdateModel(); err != nil {
		return err
	}

	joints := c.JointNames()
	M, err := m.MassMatrix()
	if err != nil {
		return err
	}
	g, err := m.GravityVector()
	if err != nil {
		return err
	}
	cond, err := m.Conditioning()
	if err != nil {
		return err
	}

	tip, point := cfg.Controller.Link, mgl64.Vec3(cfg.Controller.Point)
	if tip == "" {
		links := c.Links()
		tip, point = links[len(links)-1], mgl64.Vec3{}
	}
	J, err := m.J(tip, point)
	if err != nil {
		return err
	}
	pos, err := m.Position(tip, point)
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render(cfg.Robot.Name))
	fmt.Println(viz.KeyValues([]viz.KV{
		{Key: "dof", Value: fmt.Sprintf("%d", c.Dof())},
		{Key: "backend", Value: m.Backend().String()},
		{Key: "q0", Value: fmt.Sprintf("%.4f", q0)},
		{Key: "condition", Value: fmt.Sprintf("%.3e", cond.Condition)},
		{Key: "regularized", Value: fmt.Sprintf("%t", cond.Regularized)},
		{Key: "tip", Value: fmt.Sprintf("%s %.4f", tip, []float64{pos[0], pos[1], pos[2]})},
	}))
	fmt.Println()
	fmt.Println(viz.Title.Render("mass matrix"))
	fmt.Println(viz.Matrix(M, joints, joints))
	fmt.Println(viz.Title.Render("gravity vector"))
	fmt.Println(viz.Vector(g, joints, "g"))
	fmt.Println(viz.Title.Render("jacobian of " + tip))
	fmt.Println(viz.Matrix(J, []string{"vx", "vy", "vz", "wx", "wy", "wz"}, joints))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println(viz.Subtle.Render("no runs found"))
		return nil
	}

	var rows [][]string
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.Robot,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%.2fs", run.Duration),
			fmt.Sprintf("%.4fs", run.Dt),
			run.Integrator,
			run.Controller,
			fmt.Sprintf("%.2e", run.EnergyDrift),
		})
	}
	fmt.Println(viz.Table([]string{"ID", "ROBOT", "TIME", "DURATION", "DT", "INTEG", "CTRL", "DRIFT"}, rows))
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tbl, err := st.LoadTable(runID)
	if err != nil {
		return err
	}
	if len(tbl.Rows) == 0 {
		return errors.New("no data to plot")
	}

	fmt.Println(viz.KeyValues([]viz.KV{
		{Key: "run", Value: meta.ID},
		{Key: "robot", Value: meta.Robot},
		{Key: "samples", Value: fmt.Sprintf("%d", len(tbl.Rows))},
	}))
	fmt.Println()

	if phaseJoint != "" {
		q, err := tbl.Column("q_" + phaseJoint)
		if err != nil {
			return err
		}
		dq, err := tbl.Column("dq_" + phaseJoint)
		if err != nil {
			return err
		}
		fmt.Println(viz.Box("phase portrait "+phaseJoint,
			analysis.RenderASCII(analysis.PhasePortrait(q, dq), plotSize[1], plotSize[0]*2)))
		return nil
	}

	cols := columns
	if len(cols) == 0 {
		const maxPlots = 6
		for _, j := range meta.Joints {
			if len(cols) == maxPlots {
				break
			}
			cols = append(cols, "q_"+j)
		}
	}
	for _, name := range cols {
		data, err := tbl.Column(name)
		if err != nil {
			return err
		}
		fmt.Println(viz.Plot(data, name+" vs time", plotSize[0], plotSize[1]))
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tbl, err := st.LoadTable(runID)
	if err != nil {
		return err
	}
	name := column
	if name == "" {
		if len(meta.Joints) == 0 {
			return errors.New("run has no joints")
		}
		name = "q_" + meta.Joints[0]
	}
	data, err := tbl.Column(name)
	if err != nil {
		return err
	}

	spec, err := analysis.PowerSpectrum(data, meta.Dt)
	if err != nil {
		return err
	}
	freq, err := analysis.DominantFrequency(data, meta.Dt)
	if err != nil {
		return err
	}

	fmt.Println(viz.Header.Render("frequency analysis: " + meta.ID))
	plotData := spec.Power
	if len(plotData) > 4 {
		plotData = plotData[:len(plotData)/4]
	}
	fmt.Println(viz.Plot(plotData, "power spectrum ("+name+")", analyzeSize[0], analyzeSize[1]))
	fmt.Println()

	kvs := []viz.KV{{Key: "dominant frequency", Value: fmt.Sprintf("%.3f hz", freq)}}
	if freq > 0 {
		kvs = append(kvs, viz.KV{Key: "period", Value: fmt.Sprintf("%.3f s", 1/freq)})
	}
	fmt.Println(viz.KeyValues(kvs))
	return nil
}

func svgRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tbl, err := st.LoadTable(runID)
	if err != nil {
		return err
	}

	var out string
	if phaseJoint != "" {
		q, err := tbl.Column("q_" + phaseJoint)
		if err != nil {
			return err
		}
		dq, err := tbl.Column("dq_" + phaseJoint)
		if err != nil {
			return err
		}
		out, err = export.TrajectorySVG(analysis.PhasePortrait(q, dq), svgSize[1], svgSize[0], export.Palette[0])
		if err != nil {
			return err
		}
	} else {
		cols := columns
		if len(cols) == 0 {
			for _, j := range meta.Joints {
				cols = append(cols, "q_"+j)
			}
		}
		t, err := tbl.Column("time")
		if err != nil {
			return err
		}
		series := make([][]float64, len(cols))
		for i, name := range cols {
			if series[i], err = tbl.Column(name); err != nil {
				return err
			}
		}
		out, err = export.SeriesSVG(t, series, cols, svgSize[1], svgSize[0])
		if err != nil {
			return err
		}
	}

	if outFile == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(outFile, []byte(out), 0o644); err != nil {
		return err
	}
	fmt.Println(viz.Success.Render("wrote ") + outFile)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(os.Stdout, args[0])
}
