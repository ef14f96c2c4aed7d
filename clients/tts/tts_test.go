package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"assistant-voice-pipeline/playback"

	"github.com/spf13/afero"
	wave "github.com/zenwerk/go-wave"
)

// wavBytes renders samples as a complete 16-bit mono WAV file.
func wavBytes(t *testing.T, samples []int16, rate int) []byte {
	t.Helper()

	fileSys := afero.NewMemMapFs()

	waveFile, err := fileSys.Create("clip.wav")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	writer, err := wave.NewWriter(wave.WriterParam{
		Out:           waveFile,
		Channel:       1,
		SampleRate:    rate,
		BitsPerSample: 16,
	})
	if err != nil {
		t.Fatalf("wav writer: %v", err)
	}

	if _, err := writer.WriteSample16(samples); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := afero.ReadFile(fileSys, "clip.wav")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	return raw
}

func TestCloud_Synthesize(t *testing.T) {
	t.Run("decodes the returned wav into a clip at the header's rate", func(t *testing.T) {
		samples := []int16{0, 1000, -1000, 500, -500, 0}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "audio/wav")
			w.Write(wavBytes(t, samples, 24000))
		}))
		defer server.Close()

		cloud, err := NewCloud(&CloudConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Model:   "tts-1",
			Voice:   "alloy",
		})
		if err != nil {
			t.Fatalf("NewCloud: %v", err)
		}

		clip, err := cloud.Synthesize(context.Background(), "hello", "en")
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}

		if clip.Rate != 24000 {
			t.Errorf("expected rate 24000 from the wav header, got %d", clip.Rate)
		}

		if len(clip.Samples) != len(samples) {
			t.Fatalf("expected %d samples, got %d", len(samples), len(clip.Samples))
		}

		for i, want := range samples {
			if clip.Samples[i] != want {
				t.Errorf("sample %d: expected %d, got %d", i, want, clip.Samples[i])
			}
		}
	})

	t.Run("a per-language voice override is used when the language matches", func(t *testing.T) {
		var voices []string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Voice string `json:"voice"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode request: %v", err)
			}
			voices = append(voices, body.Voice)

			w.Header().Set("Content-Type", "audio/wav")
			w.Write(wavBytes(t, []int16{0, 0}, 24000))
		}))
		defer server.Close()

		cloud, err := NewCloud(&CloudConfig{
			APIKey:      "test-key",
			BaseURL:     server.URL,
			Model:       "tts-1",
			Voice:       "alloy",
			VoiceByLang: map[string]string{"pt": "nova"},
		})
		if err != nil {
			t.Fatalf("NewCloud: %v", err)
		}

		if _, err := cloud.Synthesize(context.Background(), "olá", "pt"); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}

		if _, err := cloud.Synthesize(context.Background(), "hello", "en"); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}

		if len(voices) != 2 || voices[0] != "nova" || voices[1] != "alloy" {
			t.Errorf("expected voices [nova alloy], got %v", voices)
		}
	})

	t.Run("a service error surfaces instead of a clip", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
		}))
		defer server.Close()

		cloud, err := NewCloud(&CloudConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Model:   "tts-1",
			Voice:   "alloy",
		})
		if err != nil {
			t.Fatalf("NewCloud: %v", err)
		}

		if _, err := cloud.Synthesize(context.Background(), "hello", "en"); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestRawToSamples(t *testing.T) {
	t.Run("reinterprets little-endian pairs and drops a trailing odd byte", func(t *testing.T) {
		raw := []byte{0x00, 0x00, 0xe8, 0x03, 0x18, 0xfc, 0xff}

		got := rawToSamples(raw)
		want := []int16{0, 1000, -1000}

		if len(got) != len(want) {
			t.Fatalf("expected %d samples, got %d", len(want), len(got))
		}

		for i := range want {
			if got[i] != want[i] {
				t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
			}
		}
	})
}

type fakeSynth struct {
	name  string
	clip  playback.Clip
	err   error
	calls int
}

func (f *fakeSynth) Name() string { return f.name }

func (f *fakeSynth) Synthesize(context.Context, string, string) (playback.Clip, error) {
	f.calls++
	return f.clip, f.err
}

func TestChain_Synthesize(t *testing.T) {
	t.Run("falls back to the next synthesizer on failure", func(t *testing.T) {
		first := &fakeSynth{name: "first", err: errors.New("connection refused")}
		second := &fakeSynth{name: "second", clip: playback.Clip{Samples: []int16{1}, Rate: 22050}}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		clip, err := chain.Synthesize(context.Background(), "hello", "en")
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}

		if clip.Rate != 22050 {
			t.Errorf("expected the fallback clip, got rate %d", clip.Rate)
		}
	})

	t.Run("the second synthesizer is untouched when the first succeeds", func(t *testing.T) {
		first := &fakeSynth{name: "first", clip: playback.Clip{Samples: []int16{1}, Rate: 24000}}
		second := &fakeSynth{name: "second"}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		if _, err := chain.Synthesize(context.Background(), "hello", "en"); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}

		if second.calls != 0 {
			t.Errorf("expected no fallback call, got %d", second.calls)
		}
	})

	t.Run("cancellation is final and skips remaining synthesizers", func(t *testing.T) {
		first := &fakeSynth{name: "first", err: context.Canceled}
		second := &fakeSynth{name: "second"}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		if _, err := chain.Synthesize(context.Background(), "hello", "en"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		if second.calls != 0 {
			t.Errorf("expected no fallback after cancellation, got %d calls", second.calls)
		}
	})
}
