package vad

import (
	"fmt"
	"log"
	"os"

	"github.com/streamer45/silero-vad-go/speech"
)

// sileroWindow is the fixed inference window of the silero model at 16kHz.
const sileroWindow = 512

const sileroRate = 16000

// Silero wraps the silero neural VAD. It is the most capable backend: a
// recurrent model emitting a speech probability per 512-sample window.
type Silero struct {
	detector *speech.Detector

	// carry holds trailing samples that did not fill a complete inference
	// window. They are prepended to the next chunk so no audio is ever
	// dropped between calls.
	carry []float32

	speaking bool
}

// NewSilero loads the silero model from modelPath. Returns
// ErrBackendUnavailable when the model file or the onnx runtime is missing.
func NewSilero(modelPath string, threshold float64) (*Silero, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: no silero model configured", ErrBackendUnavailable)
	}

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: sileroRate,
		Threshold:  float32(threshold),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return &Silero{detector: detector}, nil
}

func (s *Silero) Name() string {
	return "silero"
}

// IsSpeech feeds the chunk through the model in 512-sample windows and
// reports whether speech is active at the end of the chunk or started within
// it.
func (s *Silero) IsSpeech(chunk []int16) (bool, error) {
	samples := append(s.carry, pcmToFloat32(chunk)...)

	startedInChunk := false

	var i int
	for ; i+sileroWindow <= len(samples); i += sileroWindow {
		event, err := s.detector.DetectStreamFrame(samples[i : i+sileroWindow])
		if err != nil {
			return false, fmt.Errorf("silero frame: %w", err)
		}

		if event == nil {
			continue
		}

		if event.IsStart {
			s.speaking = true
			startedInChunk = true
		}

		if event.IsEnd {
			s.speaking = false
		}
	}

	s.carry = append(s.carry[:0], samples[i:]...)

	return s.speaking || startedInChunk, nil
}

// Reset clears the recurrent model state and drops the carry-over buffer.
func (s *Silero) Reset() {
	if err := s.detector.Reset(); err != nil {
		log.Printf("vad: silero reset: %v", err)
	}

	s.carry = s.carry[:0]
	s.speaking = false
}

// Close releases the onnx session.
func (s *Silero) Close() error {
	return s.detector.Destroy()
}

func pcmToFloat32(chunk []int16) []float32 {
	out := make([]float32, len(chunk))
	for i, sample := range chunk {
		out[i] = float32(sample) / 32768.0
	}

	return out
}
