package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	"assistant-voice-pipeline/recorder"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Local transcribes on-device with a whisper.cpp model. Slower than the
// cloud path on small hardware but works offline.
type Local struct {
	model whisper.Model
}

func NewLocal(modelPath string) (*Local, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("local stt: model: %w", err)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("local stt: %w", err)
	}

	return &Local{model: model}, nil
}

func (l *Local) Name() string {
	return "local"
}

func (l *Local) Transcribe(ctx context.Context, utterance *recorder.Utterance) (*Result, error) {
	whisperCtx, err := l.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("local stt: context: %w", err)
	}

	if err := whisperCtx.SetLanguage("auto"); err != nil {
		return nil, fmt.Errorf("local stt: language: %w", err)
	}

	data := make([]float32, len(utterance.Samples))
	for i, sample := range utterance.Samples {
		data[i] = float32(sample) / 32768.0
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cb whisper.SegmentCallback
	if err := whisperCtx.Process(data, cb); err != nil {
		return nil, fmt.Errorf("local stt: process: %w", err)
	}

	var parts []string
	for {
		segment, err := whisperCtx.NextSegment()
		if err != nil {
			break
		}

		parts = append(parts, segment.Text)
	}

	text := cleanTranscript(strings.Join(parts, " "))
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	return &Result{
		Text:     text,
		Language: normalizeLanguage(whisperCtx.Language()),
	}, nil
}

func (l *Local) Close() error {
	return l.model.Close()
}
