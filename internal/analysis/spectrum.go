// Package analysis post-processes recorded channels: power spectra of joint
// or sensor signals and text phase portraits.
package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"
)

// Spectrum is the one-sided power spectrum of a uniformly sampled signal.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// PowerSpectrum removes the mean of x, applies a Hann window and returns the
// power at frequencies 0 .. 1/(2*dt).
func PowerSpectrum(x []float64, dt float64) (*Spectrum, error) {
	n := len(x)
	if n < 4 {
		return nil, errors.Errorf("analysis: need at least 4 samples, got %d", n)
	}
	if dt <= 0 {
		return nil, errors.Errorf("analysis: dt must be positive, got %g", dt)
	}

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)
	sig := make([]float64, n)
	for i, v := range x {
		sig[i] = v - mean
	}
	window.Apply(sig, window.Hann)

	coeffs := fft.FFTReal(sig)
	half := n/2 + 1
	s := &Spectrum{Freqs: make([]float64, half), Power: make([]float64, half)}
	for k := 0; k < half; k++ {
		s.Freqs[k] = float64(k) / (float64(n) * dt)
		a := cmplx.Abs(coeffs[k])
		s.Power[k] = a * a / float64(n)
	}
	return s, nil
}

// Dominant returns the frequency and power of the strongest non-DC bin.
func (s *Spectrum) Dominant() (freq, power float64) {
	best := 1
	for k := 2; k < len(s.Power); k++ {
		if s.Power[k] > s.Power[best] {
			best = k
		}
	}
	if best >= len(s.Power) {
		return 0, 0
	}
	return s.Freqs[best], s.Power[best]
}

// DominantFrequency is a shortcut for PowerSpectrum followed by Dominant,
// refined by parabolic interpolation over the neighbouring bins.
func DominantFrequency(x []float64, dt float64) (float64, error) {
	s, err := PowerSpectrum(x, dt)
	if err != nil {
		return 0, err
	}
	k := 1
	for i := 2; i < len(s.Power); i++ {
		if s.Power[i] > s.Power[k] {
			k = i
		}
	}
	if k <= 0 || k+1 >= len(s.Power) {
		return s.Freqs[k], nil
	}
	a, b, c := s.Power[k-1], s.Power[k], s.Power[k+1]
	den := a - 2*b + c
	if den == 0 {
		return s.Freqs[k], nil
	}
	shift := 0.5 * (a - c) / den
	return s.Freqs[k] + shift*(s.Freqs[1]-s.Freqs[0]), nil
}
