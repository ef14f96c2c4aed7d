package wakeword

import (
	"fmt"
	"strings"
	"unicode"

	"assistant-voice-pipeline/vad"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// Wake phrases are short. Anything outside this range is rejected
	// without spending a transcription on it.
	phraseMinSamples = 16000 * 3 / 10
	phraseMaxSamples = 16000 * 2

	// phraseSilenceWindows is how many consecutive non-speech windows end
	// an accumulated phrase (~320ms at 80ms windows).
	phraseSilenceWindows = 4
)

// TranscribeScorer detects a wake phrase by accumulating one short VAD-gated
// utterance and transcribing it with a local whisper model, scoring by edit
// distance to the configured phrase. Slower to fire than a dedicated keyword
// model but needs no extra training artifacts.
type TranscribeScorer struct {
	model  whisper.Model
	phrase string
	gate   vad.Backend

	buf           []int16
	speaking      bool
	silentWindows int
}

func NewTranscribeScorer(model whisper.Model, phrase string, gate vad.Backend) (*TranscribeScorer, error) {
	if model == nil {
		return nil, fmt.Errorf("model is nil")
	}

	if gate == nil {
		return nil, fmt.Errorf("gate is nil")
	}

	return &TranscribeScorer{
		model:  model,
		phrase: normalizePhrase(phrase),
		gate:   gate,
	}, nil
}

func (s *TranscribeScorer) Score(window []int16) (float64, error) {
	speech, err := s.gate.IsSpeech(window)
	if err != nil {
		return 0, fmt.Errorf("gate: %w", err)
	}

	if speech {
		if !s.speaking {
			s.speaking = true
			s.buf = s.buf[:0]
		}

		s.buf = append(s.buf, window...)
		s.silentWindows = 0

		// Too long to be a wake phrase.
		if len(s.buf) > phraseMaxSamples {
			s.dropPhrase()
		}

		return 0, nil
	}

	if !s.speaking {
		return 0, nil
	}

	s.buf = append(s.buf, window...)
	s.silentWindows++

	if s.silentWindows < phraseSilenceWindows {
		return 0, nil
	}

	defer s.dropPhrase()

	if len(s.buf) < phraseMinSamples {
		return 0, nil
	}

	text, err := s.transcribe(s.buf)
	if err != nil {
		return 0, err
	}

	return phraseScore(normalizePhrase(text), s.phrase), nil
}

func (s *TranscribeScorer) Reset() {
	s.dropPhrase()
	s.gate.Reset()
}

func (s *TranscribeScorer) dropPhrase() {
	s.buf = s.buf[:0]
	s.speaking = false
	s.silentWindows = 0
}

func (s *TranscribeScorer) transcribe(samples []int16) (string, error) {
	context, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper context: %w", err)
	}

	data := make([]float32, len(samples))
	for i, sample := range samples {
		data[i] = float32(sample) / 32768.0
	}

	var cb whisper.SegmentCallback
	if err := context.Process(data, cb); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var parts []string
	for {
		segment, err := context.NextSegment()
		if err != nil {
			break
		}

		parts = append(parts, segment.Text)
	}

	return strings.Join(parts, " "), nil
}

// normalizePhrase lowercases, strips everything except letters and digits,
// and collapses whitespace so transcription punctuation does not affect
// matching.
func normalizePhrase(text string) string {
	var cleaned strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			cleaned.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(cleaned.String()), " ")
}

// phraseScore maps the edit distance between the heard text and the wake
// phrase onto [0, 1], where 1 is an exact match.
func phraseScore(heard, phrase string) float64 {
	if phrase == "" || heard == "" {
		return 0
	}

	longest := len(phrase)
	if len(heard) > longest {
		longest = len(heard)
	}

	return 1 - float64(levenshtein(heard, phrase))/float64(longest)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}

	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr := make([]int, len(b)+1)
		curr[0] = i

		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = minInt(prev[j]+1, minInt(curr[j-1]+1, prev[j-1]+cost))
		}

		prev = curr
	}

	return prev[len(b)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}
