package audiodev

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// openInputStream discovers the input device and opens a blocking capture
// stream on it.
func openInputStream(cfg Config) (Stream, error) {
	info, err := findInputDevice(cfg.NameHint)
	if err != nil {
		return nil, err
	}

	in := make([]int16, cfg.ChunkSamples)

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.ChunkSamples,
	}

	stream, err := portaudio.OpenStream(params, in)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrDeviceUnavailable, info.Name, err)
	}

	if err := stream.Start(); err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			log.Printf("error closing unstartable stream: %v", closeErr)
		}

		return nil, fmt.Errorf("%w: start %q: %v", ErrDeviceUnavailable, info.Name, err)
	}

	return &paStream{stream: stream, in: in}, nil
}

// findInputDevice matches by name heuristic first, then falls back to the
// configured default input. Discovery is re-run on every open because device
// indexes are not stable across reboots.
func findInputDevice(hint string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate: %v", ErrDeviceUnavailable, err)
	}

	if hint != "" {
		for _, d := range devices {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(hint)) {
				return d, nil
			}
		}

		log.Printf("no input device matching %q, using default input", hint)
	}

	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return info, nil
}

type paStream struct {
	stream *portaudio.Stream
	in     []int16

	closeOnce sync.Once
	closeErr  error
}

func (s *paStream) ReadChunk() ([]int16, error) {
	if err := s.stream.Read(); err != nil {
		return nil, fmt.Errorf("read input stream: %w", err)
	}

	chunk := make([]int16, len(s.in))
	copy(chunk, s.in)

	return chunk, nil
}

func (s *paStream) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stream.Stop(); err != nil {
			log.Printf("error stopping input stream: %v", err)
		}

		s.closeErr = s.stream.Close()
	})

	return s.closeErr
}
