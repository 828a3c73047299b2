package metrics

import (
	"math"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

// PeakForce is the largest force magnitude any sensor (or only Sensor, when
// set) reported during the run.
type PeakForce struct {
	Sensor string
	peak   float64
}

func NewPeakForce(sensor string) *PeakForce {
	return &PeakForce{Sensor: sensor}
}

func (p *PeakForce) Name() string {
	if p.Sensor == "" {
		return "peak_force"
	}
	return "peak_force_" + p.Sensor
}

func (p *PeakForce) Observe(s dynamo.Sample) {
	for _, r := range s.Readings {
		if p.Sensor != "" && r.Sensor != p.Sensor {
			continue
		}
		p.peak = math.Max(p.peak, math.Sqrt(r.Force[0]*r.Force[0]+r.Force[1]*r.Force[1]+r.Force[2]*r.Force[2]))
	}
}

func (p *PeakForce) Value() float64 { return p.peak }
func (p *PeakForce) Reset()         { p.peak = 0 }

// Stability is the fraction of samples whose joint speeds all stay below
// Threshold.
type Stability struct {
	Threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{Threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(sample dynamo.Sample) {
	s.samples++
	for _, v := range sample.Dq {
		if math.Abs(v) > s.Threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1
	}
	return 1 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// ResidualSpeed is the joint speed norm at the last observed sample. Low
// values mean the robot has come to rest.
type ResidualSpeed struct {
	last float64
}

func NewResidualSpeed() *ResidualSpeed { return &ResidualSpeed{} }

func (r *ResidualSpeed) Name() string { return "residual_speed" }

func (r *ResidualSpeed) Observe(s dynamo.Sample) {
	sum := 0.0
	for _, v := range s.Dq {
		sum += v * v
	}
	r.last = math.Sqrt(sum)
}

func (r *ResidualSpeed) Value() float64 { return r.last }
func (r *ResidualSpeed) Reset()         { r.last = 0 }

// Default returns the metric set recorded by every CLI run.
func Default() []dynamo.Metric {
	return []dynamo.Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewControlEffort(),
		NewPeakForce(""),
		NewStability(50),
		NewResidualSpeed(),
	}
}
