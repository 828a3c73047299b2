package sim

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/logging"
	"github.com/san-kum/rbdsim/internal/model"
	"github.com/san-kum/rbdsim/internal/sensor"
	"github.com/san-kum/rbdsim/internal/spatial"
)

type holdController struct{}

func (holdController) Torques(m *model.Model, t float64) (dynamo.Control, error) {
	g, err := m.GravityVector()
	if err != nil {
		return nil, err
	}
	return dynamo.Control(g.RawVector().Data), nil
}

type countingObserver struct{ steps []int }

func (o *countingObserver) OnStep(s dynamo.Sample) { o.steps = append(o.steps, s.Step) }

func newLoop(t *testing.T, w *World, c Controller) *Loop {
	t.Helper()
	r := w.robots["robot"]
	m, err := model.New(r.chain, model.WithName("robot"), model.WithLogger(logging.NewTestLogger(t)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l, err := NewLoop(w, m, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l
}

func TestLoop_Run(t *testing.T) {
	w := newWorld(t, pendulum(t))
	if err := w.SetState("robot", []float64{0.4}, []float64{0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := newLoop(t, w, nil)
	obs := &countingObserver{}
	l.AddObserver(obs)

	cfg := dynamo.DefaultConfig()
	cfg.Dt = 0.001
	cfg.Duration = 1
	res, err := l.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.StepsTaken != 1000 {
		t.Errorf("expected 1000 steps, got %d", res.StepsTaken)
	}
	if len(res.Samples) != 1001 || len(obs.steps) != 1001 {
		t.Errorf("expected 1001 samples, got %d (observer %d)", len(res.Samples), len(obs.steps))
	}
	if got := l.Model().Updates(); got != 1001 {
		t.Errorf("expected 1001 model updates, got %d", got)
	}
	if res.EnergyDrift > 1e-8 {
		t.Errorf("expected negligible energy drift, got %g", res.EnergyDrift)
	}

	final := res.Final()
	q, _ := w.JointPositions("robot")
	if final.Q[0] != q[0] {
		t.Errorf("expected model q %v to match world q %v", final.Q[0], q[0])
	}
	if math.Abs(final.Time-1) > 1e-9 {
		t.Errorf("expected final time 1, got %v", final.Time)
	}
}

func TestLoop_GravityCompensationHolds(t *testing.T) {
	w := newWorld(t, doublePendulum(t))
	q0 := []float64{0.7, -0.3}
	if err := w.SetState("robot", q0, []float64{0, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := newLoop(t, w, holdController{})

	cfg := dynamo.DefaultConfig()
	cfg.Dt = 0.005
	cfg.Duration = 2
	if _, err := l.Run(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q, _ := w.JointPositions("robot")
	for i := range q0 {
		if math.Abs(q[i]-q0[i]) > 1e-6 {
			t.Errorf("joint %d drifted from %v to %v", i, q0[i], q[i])
		}
	}
}

func TestLoop_SensorReadings(t *testing.T) {
	w := newWorld(t, pendulum(t), WithGravity(mgl64.Vec3{}))
	err := w.AddPush(Push{
		Robot: "robot", Link: "arm",
		Point: mgl64.Vec3{0, 0, -1}, Force: mgl64.Vec3{1, 0, 0},
		Start: 0, End: 0.05,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := newLoop(t, w, nil)
	fs, err := sensor.New(l.Model(), "robot", "arm", spatial.Identity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.AddSensor(fs)
	logger, logs := logging.NewObservedTestLogger(t)
	l.SetLogger(logger)

	cfg := dynamo.DefaultConfig()
	cfg.Dt = 0.01
	cfg.Duration = 0.2
	cfg.LogEvery = 5
	res, err := l.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := res.Samples[0].Readings
	if len(first) != 1 || first[0].Sensor != "arm_ft" {
		t.Fatalf("expected one arm_ft reading, got %+v", first)
	}
	if math.Abs(first[0].Force[0]-1) > 1e-12 || math.Abs(first[0].Moment[1]+1) > 1e-12 {
		t.Errorf("expected force (1,0,0) and moment (0,-1,0), got %v %v", first[0].Force, first[0].Moment)
	}
	last := res.Final().Readings[0]
	if mgl64.Vec3(last.Force).Len() != 0 || mgl64.Vec3(last.Moment).Len() != 0 {
		t.Errorf("expected zero reading after the push, got %v %v", last.Force, last.Moment)
	}
	if got := logs.FilterMessage("step").Len(); got != 4 {
		t.Errorf("expected 4 progress logs, got %d", got)
	}
}

func TestLoop_Cancelled(t *testing.T) {
	w := newWorld(t, pendulum(t))
	l := newLoop(t, w, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := l.Run(ctx, dynamo.DefaultConfig())
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.Samples) != 1 {
		t.Errorf("expected only the initial sample, got %d", len(res.Samples))
	}
}

func TestLoop_Errors(t *testing.T) {
	w := newWorld(t, pendulum(t))
	m, err := model.New(doublePendulum(t), model.WithName("robot"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewLoop(w, m, nil); err == nil {
		t.Error("expected error for dof mismatch")
	}

	m, _ = model.New(pendulum(t), model.WithName("ghost"))
	if _, err := NewLoop(w, m, nil); err == nil {
		t.Error("expected error for unknown robot")
	}

	l := newLoop(t, w, nil)
	if _, err := l.Run(context.Background(), dynamo.Config{Dt: -1, Duration: 1}); err == nil {
		t.Error("expected error for invalid config")
	}
}
