package stt

import (
	"context"
	"fmt"

	"assistant-voice-pipeline/recorder"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
)

const uploadName = "utterance.wav"

// Cloud transcribes against an OpenAI compatible audio endpoint. The
// utterance is encoded as WAV on an in-memory filesystem and uploaded as a
// multipart form.
type Cloud struct {
	client  *openai.Client
	model   string
	fileSys afero.Fs
}

type CloudConfig struct {
	APIKey string

	// BaseURL points the client at a compatible provider. Empty uses the
	// OpenAI default.
	BaseURL string

	// Model is the transcription model name, for example whisper-large-v3.
	Model string
}

func NewCloud(cfg *CloudConfig) (*Cloud, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is empty")
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("model is empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Cloud{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		fileSys: afero.NewMemMapFs(),
	}, nil
}

func (c *Cloud) Name() string {
	return "cloud"
}

func (c *Cloud) Transcribe(ctx context.Context, utterance *recorder.Utterance) (*Result, error) {
	if err := utterance.EncodeWAV(c.fileSys, uploadName); err != nil {
		return nil, fmt.Errorf("cloud stt: %w", err)
	}

	waveFile, err := c.fileSys.Open(uploadName)
	if err != nil {
		return nil, fmt.Errorf("cloud stt: %w", err)
	}
	defer waveFile.Close()
	defer c.fileSys.Remove(uploadName)

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: uploadName,
		Reader:   waveFile,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("cloud stt: %w", err)
	}

	text := cleanTranscript(resp.Text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	return &Result{
		Text:     text,
		Language: normalizeLanguage(resp.Language),
	}, nil
}
