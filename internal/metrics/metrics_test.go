package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

func TestEnergy(t *testing.T) {
	m := NewEnergy()
	m.Observe(dynamo.Sample{Kinetic: 1, Potential: 2})
	m.Observe(dynamo.Sample{Kinetic: 3, Potential: 0})
	if got := m.Value(); got != 3 {
		t.Errorf("expected mean energy 3, got %v", got)
	}
	m.Reset()
	if got := m.Value(); got != 0 {
		t.Errorf("expected 0 after reset, got %v", got)
	}
}

func TestEnergyDrift(t *testing.T) {
	tests := []struct {
		name     string
		energies []float64
		want     float64
	}{
		{"constant", []float64{2, 2, 2}, 0},
		{"max deviation", []float64{2, 2.2, 1.9, 2.1}, 0.1},
		{"zero initial", []float64{0, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewEnergyDrift()
			for _, e := range tt.energies {
				m.Observe(dynamo.Sample{Potential: e})
			}
			if got := m.Value(); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("expected drift %v, got %v", tt.want, got)
			}
		})
	}
}

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	m.Observe(dynamo.Sample{Tau: dynamo.Control{1, -2}})
	m.Observe(dynamo.Sample{Tau: dynamo.Control{0, 1}})
	if got := m.Value(); got != 2 {
		t.Errorf("expected effort 2, got %v", got)
	}
}

func TestPeakForce(t *testing.T) {
	samples := []dynamo.Sample{
		{Readings: []dynamo.Reading{{Sensor: "a", Force: [3]float64{3, 4, 0}}, {Sensor: "b", Force: [3]float64{0, 0, 10}}}},
		{Readings: []dynamo.Reading{{Sensor: "a", Force: [3]float64{1, 0, 0}}}},
	}
	all, onlyA := NewPeakForce(""), NewPeakForce("a")
	for _, s := range samples {
		all.Observe(s)
		onlyA.Observe(s)
	}
	if got := all.Value(); got != 10 {
		t.Errorf("expected peak 10, got %v", got)
	}
	if got := onlyA.Value(); got != 5 {
		t.Errorf("expected peak 5 for sensor a, got %v", got)
	}
	if onlyA.Name() != "peak_force_a" {
		t.Errorf("unexpected name %q", onlyA.Name())
	}
}

func TestStability(t *testing.T) {
	m := NewStability(1)
	m.Observe(dynamo.Sample{Dq: dynamo.State{0.5, 0.2}})
	m.Observe(dynamo.Sample{Dq: dynamo.State{0.5, 2}})
	if got := m.Value(); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}

func TestResidualSpeed(t *testing.T) {
	m := NewResidualSpeed()
	m.Observe(dynamo.Sample{Dq: dynamo.State{10, 10}})
	m.Observe(dynamo.Sample{Dq: dynamo.State{3, 4}})
	if got := m.Value(); got != 5 {
		t.Errorf("expected 5, got %v", got)
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected reset to clear value")
	}
}

func TestDefaultNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Default() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %q", m.Name())
		}
		seen[m.Name()] = true
	}
}
