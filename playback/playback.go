// Package playback plays PCM16 clips on the default output device, one at a
// time, so overlapping synthesis never produces overlapping audio.
package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// framesPerWrite is the portaudio output buffer size in frames.
const framesPerWrite = 1024

// Clip is one playable buffer of PCM16 mono audio.
type Clip struct {
	Samples []int16
	Rate    int
}

// Duration is the audible length of the clip.
func (c Clip) Duration() time.Duration {
	if c.Rate == 0 {
		return 0
	}

	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.Rate)
}

// Tone renders a sine wave clip with a short fade at both ends so start and
// stop do not click.
func Tone(freq float64, dur time.Duration, rate int) Clip {
	n := int(dur * time.Duration(rate) / time.Second)
	fade := rate / 100 // 10ms
	if fade > n/2 {
		fade = n / 2
	}

	samples := make([]int16, n)
	for i := range samples {
		v := math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 0.4

		if i < fade {
			v *= float64(i) / float64(fade)
		}
		if n-i <= fade {
			v *= float64(n-i) / float64(fade)
		}

		samples[i] = int16(v * math.MaxInt16)
	}

	return Clip{Samples: samples, Rate: rate}
}

// Sink owns the output device. Play calls are serialized by an internal
// mutex, so any goroutine can hand clips over without coordinating.
type Sink struct {
	mu sync.Mutex
}

// NewSink initializes the audio host for output. Callers must Close the sink
// to balance the initialization.
func NewSink() (*Sink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("playback: %w", err)
	}

	return &Sink{}, nil
}

// Play blocks until the whole clip has been written to the device or the
// context is cancelled. Cancellation stops mid clip at a buffer boundary.
func (s *Sink) Play(ctx context.Context, clip Clip) error {
	if len(clip.Samples) == 0 {
		return nil
	}

	if clip.Rate <= 0 {
		return fmt.Errorf("playback: invalid rate %d", clip.Rate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]int16, framesPerWrite)

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(clip.Rate), framesPerWrite, &buf)
	if err != nil {
		return fmt.Errorf("playback: open: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("playback: start: %w", err)
	}
	defer stream.Stop()

	for offset := 0; offset < len(clip.Samples); offset += framesPerWrite {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n := copy(buf, clip.Samples[offset:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}

		if err := stream.Write(); err != nil {
			return fmt.Errorf("playback: write: %w", err)
		}
	}

	return nil
}

// Beep plays a short confirmation tone, used on startup and after a wake
// word fires.
func (s *Sink) Beep(ctx context.Context) error {
	return s.Play(ctx, Tone(440, 150*time.Millisecond, 16000))
}

// Close releases the audio host.
func (s *Sink) Close() error {
	return portaudio.Terminate()
}
