// Package config loads and validates the assistant's YAML configuration.
// Secrets (API keys, tokens) never live here; main reads those from the
// environment.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML strings like "1.5s" or "300ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Audio struct {
	// MicRate is the device's native sample rate.
	MicRate int `yaml:"mic_rate"`

	// ChunkMs is the capture chunk length in milliseconds.
	ChunkMs int `yaml:"chunk_ms"`

	// DeviceHint selects the input device whose name contains it.
	DeviceHint string `yaml:"device_hint"`
}

type KeywordSpec struct {
	Name      string  `yaml:"name"`
	Threshold float64 `yaml:"threshold"`

	// Phrase enables the transcription scorer for this keyword. Empty
	// uses the spectral flux scorer.
	Phrase string `yaml:"phrase"`
}

type Wake struct {
	Keywords []KeywordSpec `yaml:"keywords"`

	// WhisperModel is the whisper.cpp model used by phrase keywords.
	WhisperModel string `yaml:"whisper_model"`
}

type VAD struct {
	SileroModel    string  `yaml:"silero_model"`
	Threshold      float64 `yaml:"threshold"`
	Aggressiveness int     `yaml:"aggressiveness"`
	Sensitivity    float64 `yaml:"sensitivity"`
	FloorRMS       float64 `yaml:"floor_rms"`
}

type Recorder struct {
	SilenceDuration     Duration `yaml:"silence_duration"`
	MinSpeechDuration   Duration `yaml:"min_speech_duration"`
	MinRecordDuration   Duration `yaml:"min_record_duration"`
	MaxRecordDuration   Duration `yaml:"max_record_duration"`
	CalibrationDuration Duration `yaml:"calibration_duration"`
	RetainTail          Duration `yaml:"retain_tail"`
}

type CloudSTT struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type STT struct {
	Cloud CloudSTT `yaml:"cloud"`

	// LocalModel is the whisper.cpp fallback model. Empty disables the
	// local engine.
	LocalModel string `yaml:"local_model"`
}

type Chat struct {
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxHistory   int    `yaml:"max_history"`
	MaxTokens    int    `yaml:"max_tokens"`
}

type CloudTTS struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`

	// VoiceByLang overrides the voice per 2-letter language code.
	VoiceByLang map[string]string `yaml:"voice_by_lang"`
}

type Piper struct {
	Binary string `yaml:"binary"`
	Model  string `yaml:"model"`
	Rate   int    `yaml:"rate"`
}

type TTS struct {
	Cloud CloudTTS `yaml:"cloud"`
	Piper Piper    `yaml:"piper"`
}

type Service struct {
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	Audio     Audio    `yaml:"audio"`
	Wake      Wake     `yaml:"wake"`
	VAD       VAD      `yaml:"vad"`
	Recorder  Recorder `yaml:"recorder"`
	STT       STT      `yaml:"stt"`
	Chat      Chat     `yaml:"chat"`
	TTS       TTS      `yaml:"tts"`
	SmartHome Service  `yaml:"smarthome"`
	Media     Service  `yaml:"media"`
}

// Default returns the configuration the assistant runs with when a field is
// omitted. The values mirror the hardware and timing the device ships with.
func Default() *Config {
	return &Config{
		Audio: Audio{
			MicRate:    44100,
			ChunkMs:    80,
			DeviceHint: "usb",
		},
		Wake: Wake{
			Keywords: []KeywordSpec{{Name: "assistant", Threshold: 0.5}},
		},
		VAD: VAD{
			Threshold:      0.5,
			Aggressiveness: 2,
			Sensitivity:    2.5,
			FloorRMS:       500,
		},
		Recorder: Recorder{
			SilenceDuration:     Duration(1500 * time.Millisecond),
			MinSpeechDuration:   Duration(time.Second),
			MinRecordDuration:   Duration(time.Second),
			MaxRecordDuration:   Duration(15 * time.Second),
			CalibrationDuration: Duration(1500 * time.Millisecond),
			RetainTail:          Duration(300 * time.Millisecond),
		},
		Chat: Chat{
			Model:      "gpt-4o-mini",
			MaxHistory: 20,
		},
	}
}

// Load reads, decodes and validates the file at path. Missing fields keep
// their defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	return LoadFromReader(f)
}

// LoadFromReader decodes and validates YAML from r on top of the defaults.
// Unknown fields are rejected so typos fail loudly.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Audio.MicRate <= 0 {
		return fmt.Errorf("audio.mic_rate must be positive")
	}

	if c.Audio.ChunkMs <= 0 {
		return fmt.Errorf("audio.chunk_ms must be positive")
	}

	if len(c.Wake.Keywords) == 0 {
		return fmt.Errorf("wake.keywords must not be empty")
	}

	for _, kw := range c.Wake.Keywords {
		if kw.Name == "" {
			return fmt.Errorf("wake keyword without a name")
		}

		if kw.Threshold <= 0 || kw.Threshold > 1 {
			return fmt.Errorf("wake keyword %q: threshold must be in (0, 1]", kw.Name)
		}

		if kw.Phrase != "" && c.Wake.WhisperModel == "" {
			return fmt.Errorf("wake keyword %q: phrase needs wake.whisper_model", kw.Name)
		}
	}

	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return fmt.Errorf("vad.aggressiveness must be 0..3")
	}

	if c.Recorder.SilenceDuration <= 0 {
		return fmt.Errorf("recorder.silence_duration must be positive")
	}

	if c.Recorder.MaxRecordDuration <= 0 {
		return fmt.Errorf("recorder.max_record_duration must be positive")
	}

	if c.Recorder.MaxRecordDuration.Std() < c.Recorder.SilenceDuration.Std() {
		return fmt.Errorf("recorder.max_record_duration must not be shorter than the silence window")
	}

	if c.Chat.Model == "" {
		return fmt.Errorf("chat.model must be set")
	}

	return nil
}

// ChunkSamples is the capture chunk size in samples at the mic rate.
func (c *Config) ChunkSamples() int {
	return c.Audio.MicRate * c.Audio.ChunkMs / 1000
}
