// Package recorder captures one utterance from the microphone, deciding when
// the speaker has finished from voice activity rather than a fixed duration.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"assistant-voice-pipeline/audiodev"
	"assistant-voice-pipeline/resample"
	"assistant-voice-pipeline/ring_buffer"
	"assistant-voice-pipeline/vad"
)

// ErrNoSpeech is returned when recording ends without any detected speech.
var ErrNoSpeech = errors.New("no speech detected")

// State tracks where the recorder is in its capture cycle.
type State int

const (
	Calibrating State = iota
	AwaitingSpeech
	InSpeech
	TrailingSilence
	Done
)

func (s State) String() string {
	switch s {
	case Calibrating:
		return "calibrating"
	case AwaitingSpeech:
		return "awaiting speech"
	case InSpeech:
		return "in speech"
	case TrailingSilence:
		return "trailing silence"
	case Done:
		return "done"
	}

	return "unknown"
}

// MicSource grants and revokes access to the shared input device. Satisfied
// by *audiodev.Arbiter.
type MicSource interface {
	Acquire(owner audiodev.Owner) (audiodev.Stream, error)
	Release(owner audiodev.Owner)
}

type Config struct {
	Mic     MicSource
	Backend vad.Backend

	// MicRate is the device's native sample rate. The finalized utterance
	// is always resampled to TargetRate on the high quality path.
	MicRate    int
	TargetRate int

	// SilenceDuration is how much continuous silence after speech ends the
	// recording.
	SilenceDuration time.Duration

	// MinSpeechDuration is how long speech must have been underway before
	// trailing silence can stop the recording.
	MinSpeechDuration time.Duration

	// MinRecordDuration is the floor on total recording time before any
	// silence based stop is considered.
	MinRecordDuration time.Duration

	// MaxRecordDuration is the hard cap. Reaching it stops the recording
	// even while speech is ongoing.
	MaxRecordDuration time.Duration

	// CalibrationDuration is how much leading audio feeds the detector's
	// noise floor estimate before speech detection begins. Zero skips
	// calibration.
	CalibrationDuration time.Duration

	// RetainTail is how much audio after the last speech chunk survives
	// the trailing trim.
	RetainTail time.Duration
}

// Recorder runs the end of speech state machine over microphone chunks.
type Recorder struct {
	mic     MicSource
	backend vad.Backend
	cfg     Config

	state State
}

func New(cfg *Config) (*Recorder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.Mic == nil {
		return nil, fmt.Errorf("mic is nil")
	}

	if cfg.Backend == nil {
		return nil, fmt.Errorf("vad backend is nil")
	}

	if cfg.MicRate <= 0 {
		return nil, fmt.Errorf("invalid mic rate %d", cfg.MicRate)
	}

	if cfg.TargetRate <= 0 {
		return nil, fmt.Errorf("invalid target rate %d", cfg.TargetRate)
	}

	if cfg.SilenceDuration <= 0 {
		return nil, fmt.Errorf("silence duration must be positive")
	}

	if cfg.MaxRecordDuration <= 0 {
		return nil, fmt.Errorf("max record duration must be positive")
	}

	return &Recorder{
		mic:     cfg.Mic,
		backend: cfg.Backend,
		cfg:     *cfg,
	}, nil
}

// State reports the recorder's current capture state.
func (r *Recorder) State() State {
	return r.state
}

// Record acquires the microphone and captures audio until the speaker stops
// talking or the hard cap is reached. A recording that never contained speech
// returns ErrNoSpeech. The device is released and detector state is reset on
// every exit path.
func (r *Recorder) Record(ctx context.Context) (*Utterance, error) {
	stream, err := r.mic.Acquire(audiodev.OwnerRecorder)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	defer r.mic.Release(audiodev.OwnerRecorder)
	defer r.backend.Reset()

	if err := r.calibrate(ctx, stream); err != nil {
		return nil, err
	}

	r.state = AwaitingSpeech

	preRoll := ring_buffer.New(chunkSamplesGuess(r.cfg.MicRate))

	var (
		raw     []int16
		elapsed time.Duration

		speechStart    time.Duration
		lastSpeechEnd  time.Duration
		lastSpeechSamp int
		trailing       time.Duration
		heardSpeech    bool
		forced         bool
	)

	for {
		select {
		case <-ctx.Done():
			r.state = Done

			return nil, ctx.Err()
		default:
		}

		chunk, err := stream.ReadChunk()
		if err != nil {
			r.state = Done

			return nil, fmt.Errorf("recorder: %w", err)
		}

		chunkDur := time.Duration(len(chunk)) * time.Second / time.Duration(r.cfg.MicRate)
		elapsed += chunkDur

		// The detector runs on the cheap loop path at the model rate.
		// The finalized buffer is resampled once more below on the high
		// quality path, so loop latency stays low without costing
		// transcription accuracy.
		speech, err := r.backend.IsSpeech(resample.Linear(chunk, r.cfg.MicRate, r.cfg.TargetRate))
		if err != nil {
			r.state = Done

			return nil, fmt.Errorf("recorder: %s backend: %w", r.backend.Name(), err)
		}

		switch {
		case speech && !heardSpeech:
			heardSpeech = true
			speechStart = elapsed - chunkDur
			r.state = InSpeech

			// One chunk of pre-roll keeps the word onset the detector
			// needed to trigger on.
			raw = append(raw, preRoll.Read()...)
			raw = append(raw, chunk...)
			lastSpeechEnd = elapsed
			lastSpeechSamp = len(raw)

		case speech:
			r.state = InSpeech
			raw = append(raw, chunk...)
			lastSpeechEnd = elapsed
			lastSpeechSamp = len(raw)
			trailing = 0

		case heardSpeech:
			r.state = TrailingSilence
			raw = append(raw, chunk...)
			trailing += chunkDur

		default:
			preRoll.Add(chunk)
		}

		if heardSpeech &&
			trailing >= r.cfg.SilenceDuration &&
			elapsed-speechStart >= r.cfg.MinSpeechDuration &&
			elapsed >= r.cfg.MinRecordDuration {
			break
		}

		if elapsed >= r.cfg.MaxRecordDuration {
			forced = true
			break
		}
	}

	r.state = Done

	if !heardSpeech {
		return nil, ErrNoSpeech
	}

	raw = r.trimTail(raw, lastSpeechSamp)

	utterance := &Utterance{
		Samples:         resample.Sinc(raw, r.cfg.MicRate, r.cfg.TargetRate),
		Rate:            r.cfg.TargetRate,
		SpeechDuration:  lastSpeechEnd - speechStart,
		TrailingSilence: trailing,
		Forced:          forced,
	}

	log.Printf("recorded %.2fs utterance (speech=%.2fs forced=%t)",
		utterance.Duration().Seconds(), utterance.SpeechDuration.Seconds(), forced)

	return utterance, nil
}

// calibrate feeds leading audio into the detector's noise floor estimate.
// Backends without a calibration phase are fed nothing.
func (r *Recorder) calibrate(ctx context.Context, stream audiodev.Stream) error {
	calibrator, ok := r.backend.(vad.Calibrator)
	if !ok || r.cfg.CalibrationDuration <= 0 {
		return nil
	}

	r.state = Calibrating

	var (
		chunks   [][]int16
		gathered time.Duration
	)

	for gathered < r.cfg.CalibrationDuration {
		select {
		case <-ctx.Done():
			r.state = Done

			return ctx.Err()
		default:
		}

		chunk, err := stream.ReadChunk()
		if err != nil {
			r.state = Done

			return fmt.Errorf("recorder: calibration: %w", err)
		}

		chunks = append(chunks, resample.Linear(chunk, r.cfg.MicRate, r.cfg.TargetRate))
		gathered += time.Duration(len(chunk)) * time.Second / time.Duration(r.cfg.MicRate)
	}

	calibrator.Calibrate(chunks)

	return nil
}

// trimTail cuts trailing silence but never audio at or before the last speech
// chunk, keeping a short retention window so word endings are not clipped.
func (r *Recorder) trimTail(raw []int16, lastSpeechSamp int) []int16 {
	retain := int(r.cfg.RetainTail * time.Duration(r.cfg.MicRate) / time.Second)

	keep := lastSpeechSamp + retain
	if keep > len(raw) {
		keep = len(raw)
	}

	return raw[:keep]
}

// chunkSamplesGuess sizes the pre-roll buffer to roughly one 80ms chunk at
// the device rate. The exact chunk size comes from the stream at runtime; the
// ring only needs to hold about one chunk of history.
func chunkSamplesGuess(micRate int) int {
	return micRate * 80 / 1000
}
