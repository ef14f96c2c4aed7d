package resample

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

// OutputLen is the exact number of samples produced when resampling n input
// samples from srcRate to dstRate. Both tiers are held to this length so a
// caller can size downstream buffers before converting.
func OutputLen(n, srcRate, dstRate int) int {
	return int(math.Round(float64(n) * float64(dstRate) / float64(srcRate)))
}

// Linear converts PCM16 mono audio from srcRate to dstRate using linear
// interpolation. It is the cheap tier for the hot wake-word loop: bounded
// latency, slight aliasing on downsampling is acceptable there.
func Linear(in []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}

	outLen := OutputLen(len(in), srcRate, dstRate)
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := in[srcIdx]
		s1 := s0
		if srcIdx+1 < len(in) {
			s1 = in[srcIdx+1]
		}

		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}

	return out
}

// sincTaps is the number of input samples consulted on each side of the
// interpolation point in the band-limited tier.
const sincTaps = 16

// Sinc converts PCM16 mono audio from srcRate to dstRate using windowed-sinc
// interpolation. This is the quality tier used once per utterance before the
// buffer is handed to transcription, where fidelity matters more than speed.
func Sinc(in []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}

	outLen := OutputLen(len(in), srcRate, dstRate)
	if outLen == 0 {
		return nil
	}

	// When downsampling, the sinc cutoff must sit at the target Nyquist or
	// everything above it aliases back into band.
	cutoff := 1.0
	if dstRate < srcRate {
		cutoff = float64(dstRate) / float64(srcRate)
	}

	win := window.Hamming(2*sincTaps + 1)

	out := make([]int16, outLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range out {
		srcPos := float64(i) * ratio
		center := int(math.Floor(srcPos))

		var sum, norm float64
		for t := -sincTaps; t <= sincTaps; t++ {
			idx := center + t
			if idx < 0 || idx >= len(in) {
				continue
			}
			x := (float64(idx) - srcPos) * cutoff
			w := sinc(x) * win[t+sincTaps]
			sum += float64(in[idx]) * w
			norm += w
		}
		if norm != 0 {
			sum /= norm
		}

		out[i] = clampInt16(sum)
	}

	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
