package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"assistant-voice-pipeline/playback"

	"github.com/go-audio/wav"
	openai "github.com/sashabaranov/go-openai"
)

// Cloud synthesizes against an OpenAI compatible speech endpoint, requesting
// WAV so the sample rate comes from the file header instead of guesswork.
type Cloud struct {
	client      *openai.Client
	model       string
	voice       string
	voiceByLang map[string]string
}

type CloudConfig struct {
	APIKey string

	// BaseURL points the client at a compatible provider. Empty uses the
	// OpenAI default.
	BaseURL string

	Model string

	// Voice is the default voice.
	Voice string

	// VoiceByLang overrides the voice per 2-letter language code.
	VoiceByLang map[string]string
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

	if cfg.Voice == "" {
		return nil, fmt.Errorf("voice is empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Cloud{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		voice:       cfg.Voice,
		voiceByLang: cfg.VoiceByLang,
	}, nil
}

func (c *Cloud) Name() string {
	return "cloud"
}

func (c *Cloud) Synthesize(ctx context.Context, text, lang string) (playback.Clip, error) {
	voice := c.voice
	if v, ok := c.voiceByLang[lang]; ok {
		voice = v
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return playback.Clip{}, fmt.Errorf("cloud tts: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return playback.Clip{}, fmt.Errorf("cloud tts: read: %w", err)
	}

	return decodeWAV(raw)
}

// decodeWAV parses a 16-bit WAV file into a clip, downmixing to mono when
// the voice comes back in stereo.
func decodeWAV(raw []byte) (playback.Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(raw))

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return playback.Clip{}, fmt.Errorf("cloud tts: decode: %w", err)
	}

	if buf.Format == nil || buf.Format.SampleRate == 0 {
		return playback.Clip{}, fmt.Errorf("cloud tts: missing wav format")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	samples := make([]int16, len(buf.Data)/channels)
	for i := range samples {
		var sum int
		for ch := 0; ch < channels; ch++ {
			sum += buf.Data[i*channels+ch]
		}

		samples[i] = int16(sum / channels)
	}

	return playback.Clip{
		Samples: samples,
		Rate:    buf.Format.SampleRate,
	}, nil
}
