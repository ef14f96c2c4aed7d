// Package ring_buffer keeps a rolling window of the most recent audio
// samples. The recorder uses it to retain a short pre-roll of audio from
// before speech was detected, so the first syllables of an utterance are not
// cut off.
package ring_buffer

type Buffer struct {
	buffer []int16
	head   int
	filled int
}

func New(size int) *Buffer {
	return &Buffer{
		buffer: make([]int16, size),
	}
}

func (r *Buffer) Add(samples []int16) {
	for _, s := range samples {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)
		if r.filled < len(r.buffer) {
			r.filled++
		}
	}
}

// Read returns the buffered samples in arrival order. Until the buffer has
// wrapped once it returns only the samples actually written, so an utterance
// never starts with padding zeroes.
func (r *Buffer) Read() []int16 {
	samples := make([]int16, r.filled)
	start := (r.head - r.filled + len(r.buffer)) % len(r.buffer)
	for i := 0; i < r.filled; i++ {
		samples[i] = r.buffer[(start+i)%len(r.buffer)]
	}
	return samples
}

// Len reports how many samples are currently buffered.
func (r *Buffer) Len() int {
	return r.filled
}

func (r *Buffer) Clear() {
	r.head = 0
	r.filled = 0
}
