package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"assistant-voice-pipeline/playback"
)

const defaultPiperRate = 22050

// Local synthesizes with a piper subprocess, one invocation per sentence.
// Piper writes raw s16le mono at the voice model's native rate.
type Local struct {
	binary string
	model  string
	rate   int
}

type LocalConfig struct {
	// Binary is the piper executable. Empty means "piper" on PATH.
	Binary string

	// Model is the path to the .onnx voice model.
	Model string

	// Rate is the voice model's output rate. Zero means piper's common
	// default of 22050.
	Rate int
}

func NewLocal(cfg *LocalConfig) (*Local, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("voice model is empty")
	}

	if _, err := os.Stat(cfg.Model); err != nil {
		return nil, fmt.Errorf("local tts: model: %w", err)
	}

	binary := cfg.Binary
	if binary == "" {
		binary = "piper"
	}

	rate := cfg.Rate
	if rate <= 0 {
		rate = defaultPiperRate
	}

	return &Local{binary: binary, model: cfg.Model, rate: rate}, nil
}

func (l *Local) Name() string {
	return "local"
}

// Synthesize renders the text with one piper invocation. The language code
// is ignored: a piper voice model speaks exactly one language.
func (l *Local) Synthesize(ctx context.Context, text, _ string) (playback.Clip, error) {
	cmd := exec.CommandContext(ctx, l.binary, "--model", l.model, "--output-raw")
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return playback.Clip{}, fmt.Errorf("local tts: piper: %w: %s", err, stderr.String())
	}

	return playback.Clip{
		Samples: rawToSamples(stdout.Bytes()),
		Rate:    l.rate,
	}, nil
}

// rawToSamples reinterprets little-endian 16-bit PCM bytes as samples. A
// trailing odd byte is dropped.
func rawToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}

	return samples
}
