package vad

import (
	"log"
	"math"
	"sort"
)

// Energy is the last-resort backend: a plain RMS-over-threshold test. The
// threshold is not fixed; it is derived once per session from the ambient
// noise floor, because rooms and microphones vary too much for a constant.
type Energy struct {
	threshold   float64
	sensitivity float64
	floor       float64
}

// NewEnergy returns an energy backend whose threshold starts at the floor
// until Calibrate has measured the session's noise level.
func NewEnergy(sensitivity, floor float64) *Energy {
	return &Energy{
		threshold:   floor,
		sensitivity: sensitivity,
		floor:       floor,
	}
}

func (e *Energy) Name() string {
	return "energy"
}

func (e *Energy) IsSpeech(chunk []int16) (bool, error) {
	return RMS(chunk) > e.threshold, nil
}

// Reset is a no-op; the calibrated threshold deliberately survives across
// utterances within a session.
func (e *Energy) Reset() {}

// Calibrate computes the threshold from chunks captured before any speech is
// expected: the 90th percentile of per-chunk RMS (robust against transient
// bumps and clicks, unlike the mean), scaled by the sensitivity factor and
// floored at the configured minimum.
func (e *Energy) Calibrate(chunks [][]int16) {
	if len(chunks) == 0 {
		return
	}

	levels := make([]float64, len(chunks))
	for i, chunk := range chunks {
		levels[i] = RMS(chunk)
	}

	sort.Float64s(levels)

	p90 := levels[int(float64(len(levels)-1)*0.9)]

	e.threshold = math.Max(p90*e.sensitivity, e.floor)

	log.Printf("vad: energy calibrated: noise p90=%.1f threshold=%.1f", p90, e.threshold)
}

// Threshold reports the current decision threshold.
func (e *Energy) Threshold() float64 {
	return e.threshold
}

// RMS computes the root-mean-square level of a PCM16 chunk.
func RMS(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range chunk {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(chunk)))
}
