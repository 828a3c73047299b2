package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	sum := a.Add(b)
	if sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}

	diff := b.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[1] != 4 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}

	if n := (State{3, 4}).Norm(); math.Abs(n-5) > 1e-12 {
		t.Errorf("Norm = %v, want 5", n)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"negative log period", Config{Dt: 0.1, Duration: 1.0, LogEvery: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if steps := (Config{Dt: 0.01, Duration: 1.0}).Steps(); steps != 100 {
		t.Errorf("expected 100 steps, got %d", steps)
	}
}

func TestErrors(t *testing.T) {
	err := UnknownLink("transform", "link9")
	if !errors.Is(err, ErrUnknownLink) {
		t.Errorf("expected ErrUnknownLink, got %v", err)
	}
	var le *LinkError
	if !errors.As(err, &le) || le.Link != "link9" {
		t.Errorf("expected LinkError for link9, got %v", err)
	}

	if err := CheckLen("setq", "q", []float64{1, 2}, 2); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err = CheckLen("setq", "q", []float64{1}, 2)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if got, want := err.Error(), "setq: q has size 1, want 2"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if err := CheckDims("nullspace", "J", 3, 2, -1, 2); err != nil {
		t.Errorf("wildcard rows should match, got %v", err)
	}
	if err := CheckDims("nullspace", "J", 3, 3, -1, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimError(t *testing.T) {
	err := SimError{Time: 1.5, Step: 150, Message: "test error"}
	expected := "step 150 (t=1.5000): test error"
	if err.Error() != expected {
		t.Errorf("SimError.Error() = %q, want %q", err.Error(), expected)
	}
}
