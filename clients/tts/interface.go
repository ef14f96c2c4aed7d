// Package tts turns sentences into playable audio, preferring a cloud voice
// and falling back to a local piper process when offline.
package tts

import (
	"context"

	"assistant-voice-pipeline/playback"
)

// Synthesizer renders one sentence of text as a playable clip. The language
// code is advisory: engines that support per-language voices use it, others
// ignore it.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, lang string) (playback.Clip, error)
}
