// Package sentence turns a stream of model text fragments into complete
// sentences so speech synthesis can start before the full reply has arrived.
package sentence

import (
	"regexp"
	"strings"
)

// boundary matches a sentence terminator followed by whitespace. The
// whitespace requirement keeps decimals ("3.14") and abbreviations mid-token
// from splitting early.
var boundary = regexp.MustCompile(`[.!?]["')\]]?\s`)

// Buffer accumulates streamed fragments and emits sentences as soon as they
// complete. Zero value is ready to use.
type Buffer struct {
	pending strings.Builder
}

// Feed appends a fragment and returns any sentences completed by it, in
// order. Fragments can split words, sentences, or even directives at
// arbitrary byte positions.
func (b *Buffer) Feed(fragment string) []string {
	b.pending.WriteString(fragment)

	text := b.pending.String()

	var sentences []string
	for {
		loc := boundary.FindStringIndex(text)
		if loc == nil {
			break
		}

		sentence := strings.TrimSpace(text[:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}

		text = text[loc[1]:]
	}

	b.pending.Reset()
	b.pending.WriteString(text)

	return sentences
}

// Flush returns whatever remains after the stream ends, terminal punctuation
// or not, and empties the buffer.
func (b *Buffer) Flush() string {
	tail := strings.TrimSpace(b.pending.String())
	b.pending.Reset()

	return tail
}
