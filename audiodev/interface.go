package audiodev

import "errors"

var (
	// ErrDeviceBusy is returned when a second owner tries to acquire the
	// input device while another owner still holds it.
	ErrDeviceBusy = errors.New("audio input device is busy")

	// ErrDeviceUnavailable is returned when no usable input device can be
	// found or opened.
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
)

// Owner identifies which component currently holds the input device.
type Owner int

const (
	OwnerNone Owner = iota
	OwnerWakeWord
	OwnerRecorder
)

func (o Owner) String() string {
	switch o {
	case OwnerWakeWord:
		return "wake-word"
	case OwnerRecorder:
		return "recorder"
	default:
		return "none"
	}
}

// Stream is one open handle on the physical input device. ReadChunk blocks
// for one hardware buffer, which bounds the loop latency of every consumer.
type Stream interface {
	// ReadChunk reads one fixed-size chunk of PCM16 mono samples at the
	// device's native rate. The returned slice is owned by the caller.
	ReadChunk() ([]int16, error)

	// Close stops and closes the stream. Calling Close more than once is
	// a no-op.
	Close() error
}
