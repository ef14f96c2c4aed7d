package wakeword

import (
	"context"
	"errors"
	"testing"

	"assistant-voice-pipeline/audiodev"
)

type scriptedStream struct {
	chunks [][]int16
	pos    int
	closed bool
}

func (s *scriptedStream) ReadChunk() ([]int16, error) {
	if s.pos >= len(s.chunks) {
		return nil, errors.New("out of audio")
	}

	chunk := s.chunks[s.pos]
	s.pos++

	return chunk, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type fakeMic struct {
	stream   *scriptedStream
	acquires int
	releases int
}

func (m *fakeMic) Acquire(audiodev.Owner) (audiodev.Stream, error) {
	m.acquires++
	return m.stream, nil
}

func (m *fakeMic) Release(audiodev.Owner) {
	m.releases++
}

// stepScorer returns the scripted score per window and counts resets.
type stepScorer struct {
	scores []float64
	pos    int
	resets int
}

func (s *stepScorer) Score([]int16) (float64, error) {
	if s.pos >= len(s.scores) {
		return 0, nil
	}

	score := s.scores[s.pos]
	s.pos++

	return score, nil
}

func (s *stepScorer) Reset() {
	s.resets++
}

func chunksOf(n int) [][]int16 {
	chunks := make([][]int16, n)
	for i := range chunks {
		chunks[i] = make([]int16, WindowSamples)
	}
	return chunks
}

func TestEngine_Run(t *testing.T) {
	t.Run("fires on the first keyword whose score exceeds its threshold and reports its name", func(t *testing.T) {
		quiet := &stepScorer{scores: []float64{0.1, 0.1, 0.1}}
		hot := &stepScorer{scores: []float64{0.2, 0.3, 0.9}}

		mic := &fakeMic{stream: &scriptedStream{chunks: chunksOf(5)}}
		engine, err := New(&Config{
			Mic:     mic,
			MicRate: 16000,
			Keywords: []Keyword{
				{Name: "computer", Threshold: 0.5, Scorer: quiet},
				{Name: "jarvis", Threshold: 0.5, Scorer: hot},
			},
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		detection, err := engine.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		if detection.Keyword != "jarvis" {
			t.Errorf("expected keyword jarvis, got %q", detection.Keyword)
		}

		if detection.Score != 0.9 {
			t.Errorf("expected score 0.9, got %f", detection.Score)
		}

		if engine.State() != Fired {
			t.Errorf("expected Fired state, got %v", engine.State())
		}
	})

	t.Run("all scorers are reset when a keyword fires", func(t *testing.T) {
		fired := &stepScorer{scores: []float64{0.9}}
		bystander := &stepScorer{scores: []float64{0.0}}

		mic := &fakeMic{stream: &scriptedStream{chunks: chunksOf(2)}}
		engine, err := New(&Config{
			Mic:     mic,
			MicRate: 16000,
			Keywords: []Keyword{
				{Name: "a", Threshold: 0.5, Scorer: fired},
				{Name: "b", Threshold: 0.5, Scorer: bystander},
			},
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if _, err := engine.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}

		if fired.resets != 1 || bystander.resets != 1 {
			t.Errorf("expected every scorer reset once, got %d and %d", fired.resets, bystander.resets)
		}
	})

	t.Run("the device is released on every exit path", func(t *testing.T) {
		mic := &fakeMic{stream: &scriptedStream{chunks: chunksOf(1)}}
		engine, err := New(&Config{
			Mic:      mic,
			MicRate:  16000,
			Keywords: []Keyword{{Name: "a", Threshold: 0.5, Scorer: &stepScorer{}}},
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		// The stream runs out of audio, which surfaces as a read error.
		if _, err := engine.Run(context.Background()); err == nil {
			t.Fatal("expected read error")
		}

		if mic.releases != 1 {
			t.Errorf("expected 1 release after error exit, got %d", mic.releases)
		}

		if engine.State() != Idle {
			t.Errorf("expected Idle after error exit, got %v", engine.State())
		}
	})

	t.Run("cancellation stops the loop and releases the device", func(t *testing.T) {
		mic := &fakeMic{stream: &scriptedStream{chunks: chunksOf(100)}}
		engine, err := New(&Config{
			Mic:      mic,
			MicRate:  16000,
			Keywords: []Keyword{{Name: "a", Threshold: 0.5, Scorer: &stepScorer{}}},
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := engine.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		if mic.releases != 1 {
			t.Errorf("expected device released, got %d releases", mic.releases)
		}
	})
}

func TestFluxScorer(t *testing.T) {
	t.Run("a loud onset after a quiet baseline scores higher than steady silence", func(t *testing.T) {
		scorer := NewFluxScorer()

		quiet := make([]int16, WindowSamples)
		for i := range quiet {
			quiet[i] = int16((i % 7) - 3)
		}

		for i := 0; i < 10; i++ {
			if _, err := scorer.Score(quiet); err != nil {
				t.Fatalf("Score: %v", err)
			}
		}

		loud := make([]int16, WindowSamples)
		for i := range loud {
			loud[i] = int16((i%2)*20000 - 10000)
		}

		score, err := scorer.Score(loud)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}

		if score <= 0.5 {
			t.Errorf("expected onset score above 0.5, got %f", score)
		}
	})

	t.Run("reset clears the baseline so the next window scores zero", func(t *testing.T) {
		scorer := NewFluxScorer()

		chunk := make([]int16, WindowSamples)
		for i := range chunk {
			chunk[i] = int16((i % 100) * 50)
		}

		_, _ = scorer.Score(chunk)
		_, _ = scorer.Score(chunk)

		scorer.Reset()

		score, err := scorer.Score(chunk)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}

		if score != 0 {
			t.Errorf("expected 0 right after reset, got %f", score)
		}
	})
}

func TestPhraseScore(t *testing.T) {
	t.Run("exact and near matches score high, unrelated text scores low", func(t *testing.T) {
		if got := phraseScore("hey kettle", "hey kettle"); got != 1 {
			t.Errorf("exact match: expected 1, got %f", got)
		}

		if got := phraseScore("hey kettel", "hey kettle"); got < 0.7 {
			t.Errorf("near match: expected at least 0.7, got %f", got)
		}

		if got := phraseScore("what time is it", "hey kettle"); got > 0.5 {
			t.Errorf("unrelated text: expected below 0.5, got %f", got)
		}
	})
}
