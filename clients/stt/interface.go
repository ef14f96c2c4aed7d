// Package stt converts recorded utterances to text, preferring a cloud
// transcription service and falling back to a local whisper model when the
// network or the service is down.
package stt

import (
	"context"
	"errors"

	"assistant-voice-pipeline/recorder"
)

// ErrEmptyTranscript is returned when transcription succeeds but yields no
// usable text, for example when the utterance was only breathing or noise.
var ErrEmptyTranscript = errors.New("empty transcript")

// Result is one finished transcription.
type Result struct {
	// Text is the cleaned transcript.
	Text string

	// Language is the detected language as a two letter code, empty when
	// the engine does not report one.
	Language string
}

// Engine transcribes one utterance. Implementations are safe for sequential
// reuse across turns.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, utterance *recorder.Utterance) (*Result, error)
}
