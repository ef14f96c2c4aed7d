package tts

import (
	"context"
	"errors"
	"fmt"
	"log"

	"assistant-voice-pipeline/playback"
)

// Chain tries each synthesizer in order and returns the first clip.
type Chain struct {
	synthesizers []Synthesizer
}

func NewChain(synthesizers ...Synthesizer) (*Chain, error) {
	if len(synthesizers) == 0 {
		return nil, fmt.Errorf("no synthesizers configured")
	}

	return &Chain{synthesizers: synthesizers}, nil
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Synthesize(ctx context.Context, text, lang string) (playback.Clip, error) {
	var lastErr error

	for _, synth := range c.synthesizers {
		clip, err := synth.Synthesize(ctx, text, lang)
		if err == nil {
			return clip, nil
		}

		if errors.Is(err, context.Canceled) {
			return playback.Clip{}, err
		}

		log.Printf("tts: %s failed, trying next: %v", synth.Name(), err)
		lastErr = err
	}

	return playback.Clip{}, fmt.Errorf("tts: all synthesizers failed: %w", lastErr)
}
