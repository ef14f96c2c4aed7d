package wakeword

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// WindowSamples is the scoring window: 80ms of audio at the 16kHz model rate.
const WindowSamples = 1280

// Scorer rates one window of 16kHz PCM16 audio against a trained keyword.
// The model behind a scorer is opaque; the engine only depends on this
// contract. Implementations may keep recurrent state across windows and must
// drop all of it on Reset, or a detection in one session bleeds into the
// next.
type Scorer interface {
	// Score returns a detection score in [0, 1] for the window.
	Score(window []int16) (float64, error)

	// Reset clears recurrent state.
	Reset()
}

// fluxBaselineDecay is the exponential smoothing factor for the running
// flux baseline.
const fluxBaselineDecay = 0.95

// fluxTriggerRatio is how far above baseline the positive spectral flux must
// rise for the score to saturate at 1.
const fluxTriggerRatio = 6.0

// FluxScorer is the built-in scorer: positive spectral flux over the window's
// magnitude spectrum, normalised against a running baseline. It detects onset
// of voiced audio rather than a specific phrase, which makes it a usable
// default on hardware without a trained keyword model.
type FluxScorer struct {
	prev     []float64
	baseline float64
	win      []float64
}

func NewFluxScorer() *FluxScorer {
	return &FluxScorer{
		win: window.Hamming(WindowSamples),
	}
}

func (s *FluxScorer) Score(samples []int16) (float64, error) {
	spectrum := magnitudeSpectrum(samples, s.win)

	if s.prev == nil {
		s.prev = spectrum

		return 0, nil
	}

	var flux float64
	for i := range spectrum {
		if d := spectrum[i] - s.prev[i]; d > 0 {
			flux += d
		}
	}

	s.prev = spectrum

	if s.baseline == 0 {
		s.baseline = flux

		return 0, nil
	}

	score := flux / (s.baseline * fluxTriggerRatio)
	if score > 1 {
		score = 1
	}

	s.baseline = s.baseline*fluxBaselineDecay + flux*(1-fluxBaselineDecay)

	return score, nil
}

func (s *FluxScorer) Reset() {
	s.prev = nil
	s.baseline = 0
}

func magnitudeSpectrum(samples []int16, win []float64) []float64 {
	input := make([]float64, len(samples))
	for i, sample := range samples {
		input[i] = float64(sample) / 32768.0 * win[i]
	}

	bins := fft.FFTReal(input)

	// Only the first half carries information for a real signal.
	spectrum := make([]float64, len(bins)/2)
	for i := range spectrum {
		spectrum[i] = math.Hypot(real(bins[i]), imag(bins[i]))
	}

	return spectrum
}
