package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	webrtcRate = 16000

	// webrtcFrameMs is the per-frame duration fed to the classifier.
	// The model accepts 10, 20 or 30ms frames; 30ms halves the call count.
	webrtcFrameMs = 30

	// webrtcSpeechRatio is the fraction of speech frames above which a
	// whole chunk counts as speech.
	webrtcSpeechRatio = 0.3
)

// WebRTC wraps the webrtc per-frame boolean classifier and aggregates frames
// into a chunk decision by majority vote. The classifier itself is stateless
// across chunks.
type WebRTC struct {
	vad  *webrtcvad.VAD
	mode int
}

func NewWebRTC(aggressiveness int) (*WebRTC, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("%w: mode %d: %v", ErrBackendUnavailable, aggressiveness, err)
	}

	return &WebRTC{vad: v, mode: aggressiveness}, nil
}

func (w *WebRTC) Name() string {
	return "webrtc"
}

func (w *WebRTC) IsSpeech(chunk []int16) (bool, error) {
	frameSamples := webrtcRate * webrtcFrameMs / 1000

	pcm := pcmToBytes(chunk)
	frameBytes := frameSamples * 2

	var speechFrames, totalFrames int

	for start := 0; start+frameBytes <= len(pcm); start += frameBytes {
		active, err := w.vad.Process(webrtcRate, pcm[start:start+frameBytes])
		if err != nil {
			return false, fmt.Errorf("webrtc frame: %w", err)
		}

		if active {
			speechFrames++
		}

		totalFrames++
	}

	if totalFrames == 0 {
		return false, nil
	}

	return float64(speechFrames)/float64(totalFrames) > webrtcSpeechRatio, nil
}

// Reset is a no-op: the frame classifier carries no state across chunks.
func (w *WebRTC) Reset() {}

func pcmToBytes(chunk []int16) []byte {
	out := make([]byte, len(chunk)*2)
	for i, sample := range chunk {
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}

	return out
}
