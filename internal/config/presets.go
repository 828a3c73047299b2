package config

import (
	"sort"

	"github.com/san-kum/rbdsim/internal/chain"
)

// Presets builds a fresh copy of each named configuration.
var Presets = map[string]func() *Config{
	"pendulum": Pendulum,
	"planar2":  Planar2,
	"pbot":     PBot,
}

func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	axisY = [3]float64{0, 1, 0}
	axisZ = [3]float64{0, 0, 1}
)

// Pendulum is a 1 kg point mass on a 1 m massless rod, released from 0.5 rad.
func Pendulum() *Config {
	run := DefaultRun()
	run.Q0 = []float64{0.5}
	return &Config{
		Robot: RobotConfig{
			Name: "pendulum",
			Root: "base",
			Links: []LinkConfig{
				{Name: "rod", Parent: "base", Mass: 1, COM: [3]float64{0, 0, -1},
					Joint: JointConfig{Type: chain.Revolute, Axis: axisY}},
			},
		},
		Run:        run,
		Controller: ControllerConfig{Type: "none"},
	}
}

// Planar2 is a two-link arm swinging in the vertical xz plane under joint PD
// control toward a bent pose.
func Planar2() *Config {
	run := DefaultRun()
	run.Q0 = []float64{0.2, 0.1}
	run.Damping = 0.05
	return &Config{
		Robot: RobotConfig{
			Name: "planar2",
			Root: "base",
			Links: []LinkConfig{
				{Name: "link1", Parent: "base", Mass: 1, COM: [3]float64{0.5, 0, 0}, Inertia: [3]float64{0.001, 0.083, 0.083},
					Joint: JointConfig{Type: chain.Revolute, Axis: axisY, Limit: chain.Limit{Min: -3, Max: 3}}},
				{Name: "link2", Parent: "link1", Mass: 1, COM: [3]float64{0.5, 0, 0}, Inertia: [3]float64{0.001, 0.083, 0.083},
					Joint: JointConfig{Type: chain.Revolute, Axis: axisY, XYZ: [3]float64{1, 0, 0}, Limit: chain.Limit{Min: -3, Max: 3}}},
				{Name: "tip", Parent: "link2",
					Joint: JointConfig{Type: chain.Fixed, XYZ: [3]float64{1, 0, 0}}},
			},
		},
		Run: run,
		Controller: ControllerConfig{
			Type:   "pid",
			Target: []float64{-0.8, 1.2},
			Params: map[string]float64{"Kp": 80, "Ki": 0, "Kd": 15},
		},
	}
}

// PBot is a spatial three-joint arm (turret, shoulder, elbow) with a
// force/torque sensor at the wrist. The tip holds a point target while being
// pushed sideways for half a second.
func PBot() *Config {
	run := DefaultRun()
	run.Q0 = []float64{0, -0.6, 1.2}
	run.Duration = 3
	run.LogEvery = 250
	return &Config{
		Robot: RobotConfig{
			Name: "pbot",
			Root: "base",
			Links: []LinkConfig{
				{Name: "turret", Parent: "base", Mass: 3, COM: [3]float64{0, 0, 0.15}, Inertia: [3]float64{0.02, 0.02, 0.01},
					Joint: JointConfig{Type: chain.Revolute, Axis: axisZ}},
				{Name: "upper_arm", Parent: "turret", Mass: 2, COM: [3]float64{0.25, 0, 0}, Inertia: [3]float64{0.002, 0.04, 0.04},
					Joint: JointConfig{Type: chain.Revolute, Axis: axisY, XYZ: [3]float64{0, 0, 0.3},
						Limit: chain.Limit{Min: -2, Max: 2}}},
				{Name: "forearm", Parent: "upper_arm", Mass: 1, COM: [3]float64{0.2, 0, 0}, Inertia: [3]float64{0.001, 0.013, 0.013},
					Joint: JointConfig{Type: chain.Revolute, Axis: axisY, XYZ: [3]float64{0.5, 0, 0},
						Limit: chain.Limit{Min: -2.5, Max: 2.5}}},
				{Name: "hand", Parent: "forearm", Mass: 0.3, COM: [3]float64{0.03, 0, 0}, Inertia: [3]float64{0.0002, 0.0002, 0.0002},
					Joint: JointConfig{Type: chain.Fixed, XYZ: [3]float64{0.4, 0, 0}}},
			},
		},
		Run: run,
		Sensors: []SensorConfig{
			{Name: "wrist_ft", Link: "hand", Frame: "sensor"},
		},
		Pushes: []PushConfig{
			{Link: "hand", Point: [3]float64{0.06, 0, 0}, Force: [3]float64{0, 5, 0}, Start: 1, End: 1.5},
		},
		Controller: ControllerConfig{
			Type:   "opspace",
			Link:   "hand",
			Point:  [3]float64{0.06, 0, 0},
			Goal:   [3]float64{0.6, 0.1, 0.35},
			Params: map[string]float64{"Kp": 150, "Kv": 25, "Kq": 5, "Kqd": 1},
		},
	}
}
