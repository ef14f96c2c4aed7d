package vad

import "errors"

// ErrBackendUnavailable marks a backend whose runtime or model could not be
// loaded. It triggers fallback to the next backend, never termination: a
// missed speech chunk is recoverable, a dead listening pipeline is not.
var ErrBackendUnavailable = errors.New("vad backend unavailable")

// Backend scores fixed-duration audio chunks for speech presence. A backend
// instance owns whatever recurrent state it needs; it is used from a single
// recording loop at a time.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// IsSpeech reports whether the chunk of 16kHz PCM16 mono audio
	// contains speech.
	IsSpeech(chunk []int16) (bool, error)

	// Reset clears recurrent state between independent listening
	// sessions. Stale state biases the next utterance's detection.
	Reset()
}

// Calibrator is implemented by backends whose decision threshold depends on
// the ambient noise floor and must be measured once per session.
type Calibrator interface {
	Calibrate(chunks [][]int16)
}
