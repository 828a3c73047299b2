package dynamo

import (
	"fmt"
	"math"
)

// State is a joint-space vector: positions, velocities or accelerations,
// one entry per degree of freedom.
type State []float64

// Zeros returns a zero State of length n.
func Zeros(n int) State {
	return make(State, n)
}

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Control is a vector of joint torques (or forces, for prismatic joints).
type Control []float64

// System is an ODE dX/dt = f(X, u, t). The reference world exposes each
// robot's joint state [q; dq] through it.
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Reading is one force/torque sensor output in its reporting frame.
type Reading struct {
	Sensor string     `json:"sensor"`
	Force  [3]float64 `json:"force"`
	Moment [3]float64 `json:"moment"`
}

// Sample is the record of one fixed step of the driver loop, taken after
// the model update. Tau is the torque applied during the step.
type Sample struct {
	Step      int       `json:"step"`
	Time      float64   `json:"t"`
	Q         State     `json:"q"`
	Dq        State     `json:"dq"`
	Tau       Control   `json:"tau"`
	Kinetic   float64   `json:"kinetic"`
	Potential float64   `json:"potential"`
	Readings  []Reading `json:"readings,omitempty"`
}

// Energy returns the total mechanical energy of the sample.
func (s Sample) Energy() float64 {
	return s.Kinetic + s.Potential
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

// Config controls a fixed-step simulation run.
type Config struct {
	Dt       float64
	Duration float64
	// Gravity is the world gravity vector in the base frame.
	Gravity [3]float64
	// LogEvery is the step period of the driver's progress log; 0 disables it.
	LogEvery int
	// ValidateState makes the driver log the first joint-limit violation.
	ValidateState bool
}

// StandardGravity is the default gravity field, (0, 0, -9.8).
var StandardGravity = [3]float64{0, 0, -9.8}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      10.0,
		Gravity:       StandardGravity,
		LogEvery:      500,
		ValidateState: true,
	}
}

// Steps returns the number of fixed steps in the run.
func (c Config) Steps() int {
	return int(math.Round(c.Duration / c.Dt))
}

func (c Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", c.Duration)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("log period must be non-negative, got %d", c.LogEvery)
	}
	return nil
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
