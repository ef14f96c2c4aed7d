package audiodev

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Config describes how the input device is discovered and opened.
type Config struct {
	// SampleRate is the device's native rate in Hz (e.g. 44100 for the
	// common USB microphones that cannot capture at 16000 directly).
	SampleRate int

	// ChunkSamples is the number of frames delivered per blocking read.
	ChunkSamples int

	// NameHint selects the input device whose name contains this substring
	// (case-insensitive). When no device matches, the system default input
	// is used.
	NameHint string
}

type openFunc func(cfg Config) (Stream, error)

// Arbiter owns the single physical audio input and grants it to exactly one
// owner at a time. Ownership transfer is a close-then-open sequence on the
// underlying device; the handle of the previous owner is fully closed before
// a new acquisition can succeed.
type Arbiter struct {
	cfg  Config
	open openFunc

	mu     sync.Mutex
	owner  Owner
	stream Stream
}

// NewArbiter initialises the audio subsystem and returns an arbiter for the
// configured input device. The caller must Close it to release the audio
// subsystem.
func NewArbiter(cfg *Config) (*Arbiter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	if cfg.SampleRate <= 0 || cfg.ChunkSamples <= 0 {
		return nil, fmt.Errorf("invalid audio config: rate %d, chunk %d", cfg.SampleRate, cfg.ChunkSamples)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return &Arbiter{
		cfg:  *cfg,
		open: openInputStream,
	}, nil
}

// newArbiter builds an arbiter around a custom device opener. Used by tests
// to exercise the ownership state machine without hardware.
func newArbiter(cfg Config, open openFunc) *Arbiter {
	return &Arbiter{cfg: cfg, open: open}
}

// Acquire opens the input device exclusively for owner. It fails with
// ErrDeviceBusy while any owner holds the device, and with
// ErrDeviceUnavailable when no device can be opened. Device discovery runs on
// every acquisition, so enumeration indexes that shift across reboots or
// re-plugs do not matter. Opening hardware takes tens of milliseconds;
// callers should not treat Acquire as free.
func (a *Arbiter) Acquire(owner Owner) (Stream, error) {
	if owner == OwnerNone {
		return nil, fmt.Errorf("cannot acquire for owner %q", owner)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owner != OwnerNone {
		return nil, fmt.Errorf("%w: held by %s, wanted by %s", ErrDeviceBusy, a.owner, owner)
	}

	stream, err := a.open(a.cfg)
	if err != nil {
		return nil, err
	}

	a.owner = owner
	a.stream = stream

	return stream, nil
}

// Release closes the device held by owner. Releasing an owner that does not
// hold the device is a no-op, so every exit path may release unconditionally.
func (a *Arbiter) Release(owner Owner) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owner != owner {
		return
	}

	if err := a.stream.Close(); err != nil {
		log.Printf("error closing input device for %s: %v", owner, err)
	}

	a.owner = OwnerNone
	a.stream = nil
}

// Owner reports which component currently holds the device.
func (a *Arbiter) Owner() Owner {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.owner
}

// Close releases any held device and shuts down the audio subsystem.
func (a *Arbiter) Close() error {
	a.mu.Lock()
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			log.Printf("error closing input device: %v", err)
		}
		a.owner = OwnerNone
		a.stream = nil
	}
	a.mu.Unlock()

	return portaudio.Terminate()
}
