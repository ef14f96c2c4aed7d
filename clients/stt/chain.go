package stt

import (
	"context"
	"errors"
	"fmt"
	"log"

	"assistant-voice-pipeline/recorder"
)

// Chain tries each engine in order and returns the first success. An empty
// transcript is a final answer, not a reason to fall back, since the audio
// itself contained nothing to hear.
type Chain struct {
	engines []Engine
}

func NewChain(engines ...Engine) (*Chain, error) {
	if len(engines) == 0 {
		return nil, fmt.Errorf("no engines configured")
	}

	return &Chain{engines: engines}, nil
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Transcribe(ctx context.Context, utterance *recorder.Utterance) (*Result, error) {
	var lastErr error

	for _, engine := range c.engines {
		result, err := engine.Transcribe(ctx, utterance)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, ErrEmptyTranscript) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		log.Printf("stt: %s failed, trying next: %v", engine.Name(), err)
		lastErr = err
	}

	return nil, fmt.Errorf("stt: all engines failed: %w", lastErr)
}
