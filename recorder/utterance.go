package recorder

import (
	"fmt"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/afero"
	wave "github.com/zenwerk/go-wave"
)

// Utterance is one finalized span of captured speech, trimmed and resampled
// to the downstream transcription rate. It is consumed once by the STT
// collaborator and then discarded.
type Utterance struct {
	// Samples is PCM16 mono audio at Rate.
	Samples []int16

	// Rate is the sample rate of Samples in Hz.
	Rate int

	// SpeechDuration is the time from first to last detected speech chunk.
	SpeechDuration time.Duration

	// TrailingSilence is the silence accumulated after the last speech
	// chunk before recording stopped.
	TrailingSilence time.Duration

	// Forced is set when the hard maximum duration stopped the recording
	// before the detector confirmed end of speech.
	Forced bool
}

// Duration is the audible length of the finalized buffer.
func (u *Utterance) Duration() time.Duration {
	if u.Rate == 0 {
		return 0
	}

	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.Rate)
}

// Buffer exposes the utterance as a go-audio buffer for local transcription.
func (u *Utterance) Buffer() *audio.IntBuffer {
	data := make([]int, len(u.Samples))
	for i, sample := range u.Samples {
		data[i] = int(sample)
	}

	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  u.Rate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
}

// EncodeWAV writes the utterance as a 16-bit mono WAV file on the given
// filesystem, ready for upload to a cloud transcription service.
func (u *Utterance) EncodeWAV(fileSys afero.Fs, name string) error {
	waveFile, err := fileSys.Create(name)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}

	waveWriter, err := wave.NewWriter(wave.WriterParam{
		Out:           waveFile,
		Channel:       1,
		SampleRate:    u.Rate,
		BitsPerSample: 16,
	})
	if err != nil {
		return fmt.Errorf("wav writer: %w", err)
	}

	if _, err := waveWriter.WriteSample16(u.Samples); err != nil {
		waveWriter.Close()

		return fmt.Errorf("write wav: %w", err)
	}

	if err := waveWriter.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}

	return nil
}
