package sensor

import (
	"math"

	"github.com/pkg/errors"
)

type filter interface {
	Reset() error
	Next(x float64) (float64, bool)
}

// butterworth is a second-order IIR low-pass obtained by the bilinear
// transform. cutoff is the ratio of the cutoff to the sampling frequency.
type butterworth struct {
	cutoff float64

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
	primed             bool
}

func newButterworth(cutoff float64) (*butterworth, error) {
	f := &butterworth{cutoff: cutoff}
	return f, f.Reset()
}

func (f *butterworth) Reset() error {
	if f.cutoff <= 0 || f.cutoff >= 0.5 {
		return errors.Errorf("filter cutoff must be in (0, 0.5) of the sampling rate, got %g", f.cutoff)
	}
	k := math.Tan(math.Pi * f.cutoff)
	norm := 1 / (1 + math.Sqrt2*k + k*k)
	f.b0 = k * k * norm
	f.b1 = 2 * f.b0
	f.b2 = f.b0
	f.a1 = 2 * (k*k - 1) * norm
	f.a2 = (1 - math.Sqrt2*k + k*k) * norm
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
	f.primed = false
	return nil
}

// Next filters one sample. The first sample seeds the delay line so a
// constant input passes through without a start-up transient.
func (f *butterworth) Next(x float64) (float64, bool) {
	if !f.primed {
		f.x1, f.x2, f.y1, f.y2 = x, x, x, x
		f.primed = true
	}
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y, true
}
