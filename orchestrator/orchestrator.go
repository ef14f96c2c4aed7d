// Package orchestrator runs one conversation turn: transcribe the utterance,
// stream the model's reply, and speak it sentence by sentence while later
// sentences are still being generated and synthesized.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"assistant-voice-pipeline/clients/stt"
	"assistant-voice-pipeline/playback"
	"assistant-voice-pipeline/recorder"
	"assistant-voice-pipeline/sentence"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Channel capacities bound how far generation can run ahead of playback.
// Sentences are cheap to hold; synthesized audio is not.
const (
	sentenceBacklog = 4
	audioBacklog    = 2
)

// Transcriber converts a recorded utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, utterance *recorder.Utterance) (*stt.Result, error)
}

// Chatter streams a reply to the user's text. Satisfied by *chat.Client.
type Chatter interface {
	Stream(ctx context.Context, text string) (<-chan string, <-chan error)
}

// Synthesizer renders one sentence as audio in the given language.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (playback.Clip, error)
}

// Player plays clips one at a time.
type Player interface {
	Play(ctx context.Context, clip playback.Clip) error
}

// DirectiveHandler executes the directives it claims, returning a human
// readable status for the log.
type DirectiveHandler interface {
	Handles(d sentence.Directive) bool
	Execute(ctx context.Context, d sentence.Directive) (string, error)
}

type Config struct {
	STT    Transcriber
	Chat   Chatter
	TTS    Synthesizer
	Player Player

	// Handlers receive extracted directives. The first handler that
	// claims a directive's command gets it.
	Handlers []DirectiveHandler
}

type Orchestrator struct {
	stt      Transcriber
	chat     Chatter
	tts      Synthesizer
	player   Player
	handlers []DirectiveHandler
}

func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.STT == nil {
		return nil, fmt.Errorf("stt is nil")
	}

	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat is nil")
	}

	if cfg.TTS == nil {
		return nil, fmt.Errorf("tts is nil")
	}

	if cfg.Player == nil {
		return nil, fmt.Errorf("player is nil")
	}

	return &Orchestrator{
		stt:      cfg.STT,
		chat:     cfg.Chat,
		tts:      cfg.TTS,
		player:   cfg.Player,
		handlers: cfg.Handlers,
	}, nil
}

// RunTurn executes one full turn for the given utterance. An empty
// transcript aborts the turn before the model is contacted. Any stage
// failure cancels the rest of the pipeline; sentences already played stay
// played, directives already dispatched stay dispatched.
func (o *Orchestrator) RunTurn(ctx context.Context, utterance *recorder.Utterance) error {
	turnID := uuid.NewString()[:8]

	result, err := o.stt.Transcribe(ctx, utterance)
	if err != nil {
		return fmt.Errorf("turn %s: %w", turnID, err)
	}

	log.Printf("turn %s: heard %q (lang=%s)", turnID, result.Text, result.Language)

	group, ctx := errgroup.WithContext(ctx)

	sentences := make(chan string, sentenceBacklog)
	audio := make(chan playback.Clip, audioBacklog)

	group.Go(func() error {
		defer close(sentences)
		return o.generate(ctx, result.Text, sentences)
	})

	group.Go(func() error {
		defer close(audio)
		return o.synthesize(ctx, turnID, result.Language, sentences, audio)
	})

	group.Go(func() error {
		for clip := range audio {
			if err := o.player.Play(ctx, clip); err != nil {
				return fmt.Errorf("play: %w", err)
			}
		}

		return nil
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("turn %s: %w", turnID, err)
	}

	log.Printf("turn %s: done", turnID)

	return nil
}

// generate streams the model reply and emits complete sentences as soon as
// they close.
func (o *Orchestrator) generate(ctx context.Context, text string, sentences chan<- string) error {
	fragments, errc := o.chat.Stream(ctx, text)

	var buf sentence.Buffer

	for fragment := range fragments {
		for _, s := range buf.Feed(fragment) {
			select {
			case sentences <- s:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if err := <-errc; err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if tail := buf.Flush(); tail != "" {
		select {
		case sentences <- tail:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// synthesize extracts and dispatches directives, then renders the speakable
// remainder. Running in a single goroutine keeps directive order exact even
// while playback lags behind.
func (o *Orchestrator) synthesize(ctx context.Context, turnID, lang string, sentences <-chan string, audio chan<- playback.Clip) error {
	for raw := range sentences {
		speakable, directives := sentence.Extract(raw)

		for _, d := range directives {
			o.dispatch(ctx, turnID, d)
		}

		if speakable == "" {
			continue
		}

		clip, err := o.tts.Synthesize(ctx, speakable, lang)
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}

		select {
		case audio <- clip:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// dispatch routes one directive to the first handler that claims it. A
// failed or unroutable directive is logged and the turn keeps speaking.
func (o *Orchestrator) dispatch(ctx context.Context, turnID string, d sentence.Directive) {
	for _, handler := range o.handlers {
		if !handler.Handles(d) {
			continue
		}

		status, err := handler.Execute(ctx, d)
		if err != nil {
			log.Printf("turn %s: directive %s failed: %v", turnID, d, err)
		} else {
			log.Printf("turn %s: directive %s: %s", turnID, d, status)
		}

		return
	}

	log.Printf("turn %s: no handler for directive %s", turnID, d)
}
