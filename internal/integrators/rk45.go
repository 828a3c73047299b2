package integrators

import (
	"math"

	"github.com/san-kum/rbdsim/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. The seventh stage is the FSAL evaluation at
// the fifth-order solution.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// fifth-order weights minus fourth-order weights
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

const (
	DefaultTolerance = 1e-8
	maxSubsteps      = 1000
)

// RK45 is an adaptive Dormand-Prince stepper. Step covers the requested dt
// with as many accepted sub-steps as the tolerance demands, so callers keep a
// fixed outer step.
type RK45 struct {
	Tolerance float64
	safety    float64
	minScale  float64
	maxScale  float64
	// h carries the last accepted sub-step between calls.
	h float64
}

func NewRK45() *RK45 {
	return &RK45{
		Tolerance: DefaultTolerance,
		safety:    0.9,
		minScale:  0.2,
		maxScale:  5.0,
	}
}

func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	end := t + dt
	h := r.h
	if h <= 0 || h > dt {
		h = dt
	}
	cur := x.Clone()
	for i := 0; i < maxSubsteps && end-t > dt*1e-12; i++ {
		clipped := t+h > end
		if clipped {
			h = end - t
		}
		next, errRatio := r.attempt(dyn, cur, u, t, h)
		accept := errRatio <= 1 || math.IsNaN(errRatio) || h <= dt*1e-9
		if accept {
			cur = next
			t += h
		}
		h *= r.scale(errRatio)
		if accept && !clipped {
			r.h = h
		}
	}
	return cur
}

// StepAdaptive takes a single Dormand-Prince step of size dt and returns the
// fifth-order solution with the suggested next step size.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64) {
	saved := r.Tolerance
	r.Tolerance = tol
	next, errRatio := r.attempt(dyn, x, u, t, dt)
	r.Tolerance = saved
	return next, dt * r.scale(errRatio)
}

func (r *RK45) attempt(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h float64) (dynamo.State, float64) {
	n := len(x)
	var k [7]dynamo.State
	stage := make(dynamo.State, n)
	for s := 0; s < 7; s++ {
		copy(stage, x)
		for j := 0; j < s; j++ {
			if a := dpA[s][j]; a != 0 {
				for i := range stage {
					stage[i] += h * a * k[j][i]
				}
			}
		}
		k[s] = dyn.Derive(stage, u, t+dpC[s]*h)
	}
	// the last stage point is the fifth-order solution
	next := stage

	errMax := 0.0
	for i := 0; i < n; i++ {
		est := 0.0
		for s := range dpE {
			est += dpE[s] * k[s][i]
		}
		scale := r.Tolerance * (1 + math.Max(math.Abs(x[i]), math.Abs(next[i])))
		errMax = math.Max(errMax, math.Abs(h*est)/scale)
	}
	return next, errMax
}

func (r *RK45) scale(errRatio float64) float64 {
	switch {
	case errRatio == 0 || math.IsNaN(errRatio):
		return r.maxScale
	case errRatio > 1:
		return math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	default:
		return math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	}
}
