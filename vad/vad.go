// Package vad provides voice-activity detection over three backends with
// graceful fallback: a neural model (silero), a frame-majority classifier
// (webrtc), and a self-calibrating energy threshold as the always-available
// last resort.
package vad

import "log"

// Config selects and tunes the backend chain.
type Config struct {
	// SileroModelPath is the silero onnx model file. When empty or
	// missing, the neural backend is skipped.
	SileroModelPath string

	// Threshold is the neural backend's speech probability cut-off.
	Threshold float64

	// Aggressiveness is the webrtc backend's mode (0 least to 3 most
	// aggressive at filtering out non-speech).
	Aggressiveness int

	// Sensitivity multiplies the calibrated noise floor to produce the
	// energy backend's threshold.
	Sensitivity float64

	// FloorRMS is the minimum energy threshold, guarding against
	// hypersensitivity in near-silent rooms.
	FloorRMS float64
}

// Select probes the backends most capable first and returns the first one
// whose runtime is available. It never fails: the energy backend needs no
// model or native runtime and always loads.
func Select(cfg *Config) Backend {
	if b, err := NewSilero(cfg.SileroModelPath, cfg.Threshold); err == nil {
		log.Printf("vad: using silero backend (threshold=%.2f)", cfg.Threshold)

		return b
	} else {
		log.Printf("vad: silero unavailable: %v", err)
	}

	if b, err := NewWebRTC(cfg.Aggressiveness); err == nil {
		log.Printf("vad: using webrtc backend (aggressiveness=%d)", cfg.Aggressiveness)

		return b
	} else {
		log.Printf("vad: webrtc unavailable: %v", err)
	}

	log.Printf("vad: falling back to energy threshold backend")

	return NewEnergy(cfg.Sensitivity, cfg.FloorRMS)
}
