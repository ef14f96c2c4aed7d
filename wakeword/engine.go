// Package wakeword continuously scores microphone audio against one or more
// keyword models and reports which keyword fired.
package wakeword

import (
	"context"
	"fmt"
	"log"

	"assistant-voice-pipeline/audiodev"
	"assistant-voice-pipeline/resample"
)

// State tracks where the engine is in its listening cycle.
type State int

const (
	Idle State = iota
	Listening
	Fired
)

// Detection reports which keyword fired and how confidently.
type Detection struct {
	Keyword string
	Score   float64
}

// Keyword pairs a scorer with its own firing threshold.
type Keyword struct {
	Name      string
	Threshold float64
	Scorer    Scorer
}

// MicSource grants and revokes access to the shared input device. Satisfied
// by *audiodev.Arbiter.
type MicSource interface {
	Acquire(owner audiodev.Owner) (audiodev.Stream, error)
	Release(owner audiodev.Owner)
}

type Engine struct {
	mic      MicSource
	keywords []Keyword
	micRate  int

	state State

	// carry holds resampled samples that did not fill a complete scoring
	// window yet.
	carry []int16
}

type Config struct {
	Mic      MicSource
	Keywords []Keyword

	// MicRate is the device's native sample rate; audio is resampled to
	// the 16kHz model rate on the cheap linear path before scoring.
	MicRate int
}

func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Mic == nil {
		return nil, fmt.Errorf("mic is nil")
	}

	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("no keywords configured")
	}

	for _, kw := range cfg.Keywords {
		if kw.Scorer == nil {
			return nil, fmt.Errorf("keyword %q has no scorer", kw.Name)
		}
	}

	if cfg.MicRate <= 0 {
		return nil, fmt.Errorf("invalid mic rate %d", cfg.MicRate)
	}

	return &Engine{
		mic:      cfg.Mic,
		keywords: cfg.Keywords,
		micRate:  cfg.MicRate,
	}, nil
}

// State reports the engine's current listening state.
func (e *Engine) State() State {
	return e.state
}

// Run acquires the microphone and scores audio until a keyword fires or the
// context is cancelled. The device is released and all scorer state is reset
// on every exit path, so Run can be called again arbitrarily many times
// without leaking handles or stale model state.
func (e *Engine) Run(ctx context.Context) (*Detection, error) {
	stream, err := e.mic.Acquire(audiodev.OwnerWakeWord)
	if err != nil {
		return nil, fmt.Errorf("wake word: %w", err)
	}

	defer e.mic.Release(audiodev.OwnerWakeWord)

	e.state = Listening
	e.carry = e.carry[:0]

	defer func() {
		if e.state != Fired {
			e.state = Idle
		}
		e.resetScorers()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		chunk, err := stream.ReadChunk()
		if err != nil {
			return nil, fmt.Errorf("wake word: %w", err)
		}

		samples := append(e.carry, resample.Linear(chunk, e.micRate, 16000)...)

		var i int
		for ; i+WindowSamples <= len(samples); i += WindowSamples {
			detection := e.scoreWindow(samples[i : i+WindowSamples])
			if detection != nil {
				e.state = Fired

				log.Printf("wake word detected: %s (score=%.3f)", detection.Keyword, detection.Score)

				return detection, nil
			}
		}

		e.carry = append(e.carry[:0], samples[i:]...)
	}
}

func (e *Engine) scoreWindow(window []int16) *Detection {
	for _, kw := range e.keywords {
		score, err := kw.Scorer.Score(window)
		if err != nil {
			log.Printf("wake word: scorer %q: %v", kw.Name, err)
			continue
		}

		if score > kw.Threshold {
			return &Detection{Keyword: kw.Name, Score: score}
		}
	}

	return nil
}

// resetScorers clears every keyword's recurrent state. Keywords that did not
// fire must not carry context into the next session, or the engine can
// re-trigger immediately after resuming.
func (e *Engine) resetScorers() {
	for _, kw := range e.keywords {
		kw.Scorer.Reset()
	}
}
