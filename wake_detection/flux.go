package wake_detection

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	DefaultOnsetRatio = 1.75
	DefaultMinFlux    = 1.0
)

// SpectralFlux measures how much the magnitude spectrum grew since the
// previous chunk.
type SpectralFlux struct {
	previous []float64
}

func (s *SpectralFlux) Flux(samples []int16) float64 {
	in := make([]float64, len(samples))
	for i, sample := range samples {
		in[i] = float64(sample) / 32768
	}

	window.Apply(in, window.Hann)

	spectrum := fft.FFTReal(in)
	bins := len(spectrum)/2 + 1

	magnitudes := make([]float64, bins)
	for i := 0; i < bins && i < len(spectrum); i++ {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	var flux float64

	for i, m := range magnitudes {
		var prev float64
		if i < len(s.previous) {
			prev = s.previous[i]
		}

		if diff := m - prev; diff > 0 {
			flux += diff
		}
	}

	s.previous = magnitudes

	return flux
}

func (s *SpectralFlux) Reset() {
	s.previous = nil
}

// OnsetDetector reports a sudden rise in spectral flux, such as the start of
// speech or a clap, after a quieter stretch.
type OnsetDetector struct {
	Ratio   float64
	MinFlux float64

	flux     SpectralFlux
	lastFlux float64
	primed   bool
}

func NewOnsetDetector(ratio, minFlux float64) *OnsetDetector {
	if ratio <= 1 {
		ratio = DefaultOnsetRatio
	}

	if minFlux <= 0 {
		minFlux = DefaultMinFlux
	}

	return &OnsetDetector{Ratio: ratio, MinFlux: minFlux}
}

func (d *OnsetDetector) Process(chunk []int16) bool {
	flux := d.flux.Flux(chunk)

	if !d.primed {
		d.primed = true
		d.lastFlux = flux

		return false
	}

	onset := flux >= d.lastFlux*d.Ratio && flux >= d.MinFlux
	d.lastFlux = flux

	return onset
}

func (d *OnsetDetector) Reset() {
	d.flux.Reset()
	d.lastFlux = 0
	d.primed = false
}
