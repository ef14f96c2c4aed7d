package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"assistant-voice-pipeline/recorder"
)

func testUtterance() *recorder.Utterance {
	return &recorder.Utterance{
		Samples: make([]int16, 16000),
		Rate:    16000,
	}
}

type fakeEngine struct {
	name   string
	result *Result
	err    error
	calls  int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Transcribe(context.Context, *recorder.Utterance) (*Result, error) {
	f.calls++
	return f.result, f.err
}

func TestChain_Transcribe(t *testing.T) {
	t.Run("returns the first engine's result without touching the second", func(t *testing.T) {
		first := &fakeEngine{name: "first", result: &Result{Text: "hello"}}
		second := &fakeEngine{name: "second", result: &Result{Text: "unused"}}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		result, err := chain.Transcribe(context.Background(), testUtterance())
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}

		if result.Text != "hello" {
			t.Errorf("expected hello, got %q", result.Text)
		}

		if second.calls != 0 {
			t.Errorf("expected second engine untouched, got %d calls", second.calls)
		}
	})

	t.Run("falls back to the next engine on failure", func(t *testing.T) {
		first := &fakeEngine{name: "first", err: errors.New("connection refused")}
		second := &fakeEngine{name: "second", result: &Result{Text: "fallback"}}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		result, err := chain.Transcribe(context.Background(), testUtterance())
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}

		if result.Text != "fallback" {
			t.Errorf("expected fallback, got %q", result.Text)
		}
	})

	t.Run("an empty transcript is final and does not trigger fallback", func(t *testing.T) {
		first := &fakeEngine{name: "first", err: ErrEmptyTranscript}
		second := &fakeEngine{name: "second", result: &Result{Text: "unused"}}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		if _, err := chain.Transcribe(context.Background(), testUtterance()); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("expected ErrEmptyTranscript, got %v", err)
		}

		if second.calls != 0 {
			t.Errorf("expected no fallback, got %d calls", second.calls)
		}
	})

	t.Run("reports the last error when every engine fails", func(t *testing.T) {
		first := &fakeEngine{name: "first", err: errors.New("first down")}
		second := &fakeEngine{name: "second", err: errors.New("second down")}

		chain, err := NewChain(first, second)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		if _, err := chain.Transcribe(context.Background(), testUtterance()); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestCloud_Transcribe(t *testing.T) {
	t.Run("uploads a wav and returns cleaned text with a normalized language", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("expected multipart upload: %v", err)
			}

			if got := r.FormValue("model"); got != "whisper-large-v3" {
				t.Errorf("expected model field, got %q", got)
			}

			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("expected file field: %v", err)
			} else {
				file.Close()
			}

			json.NewEncoder(w).Encode(map[string]any{
				"text":     " [BLANK_AUDIO] turn on the lights ",
				"language": "English",
			})
		}))
		defer server.Close()

		cloud, err := NewCloud(&CloudConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Model:   "whisper-large-v3",
		})
		if err != nil {
			t.Fatalf("NewCloud: %v", err)
		}

		result, err := cloud.Transcribe(context.Background(), testUtterance())
		if err != nil {
			t.Fatalf("Transcribe: %v", err)
		}

		if result.Text != "turn on the lights" {
			t.Errorf("expected cleaned text, got %q", result.Text)
		}

		if result.Language != "en" {
			t.Errorf("expected language en, got %q", result.Language)
		}
	})

	t.Run("an annotation-only transcript surfaces as ErrEmptyTranscript", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"text": "[BLANK_AUDIO]"})
		}))
		defer server.Close()

		cloud, err := NewCloud(&CloudConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
			Model:   "whisper-large-v3",
		})
		if err != nil {
			t.Fatalf("NewCloud: %v", err)
		}

		if _, err := cloud.Transcribe(context.Background(), testUtterance()); !errors.Is(err, ErrEmptyTranscript) {
			t.Errorf("expected ErrEmptyTranscript, got %v", err)
		}
	})
}

func TestCleanTranscript(t *testing.T) {
	t.Run("strips bracketed, parenthesized and starred annotations", func(t *testing.T) {
		cases := map[string]string{
			"[BLANK_AUDIO]":                     "",
			"(wind blowing) hello there":        "hello there",
			"turn on *sighs* the lights":        "turn on the lights",
			"  what   time is it  ":             "what time is it",
			"play [music] some (soft) *jazz*":   "play some",
			"no annotations at all in this one": "no annotations at all in this one",
		}

		for in, want := range cases {
			if got := cleanTranscript(in); got != want {
				t.Errorf("cleanTranscript(%q): expected %q, got %q", in, want, got)
			}
		}
	})
}

func TestNormalizeLanguage(t *testing.T) {
	t.Run("maps spelled out names to codes and passes codes through", func(t *testing.T) {
		cases := map[string]string{
			"English":    "en",
			"portuguese": "pt",
			"en":         "en",
			" Spanish ":  "es",
			"klingon":    "klingon",
			"":           "",
		}

		for in, want := range cases {
			if got := normalizeLanguage(in); got != want {
				t.Errorf("normalizeLanguage(%q): expected %q, got %q", in, want, got)
			}
		}
	})
}
