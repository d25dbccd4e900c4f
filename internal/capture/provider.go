package capture

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCaptureUnsupported = errors.New("audio capture unsupported")
	ErrPermissionDenied   = errors.New("microphone permission denied")
	ErrDeviceNotFound     = errors.New("no capture device found")
	ErrDeviceUnsupported  = errors.New("capture constraints unsupported by device")
	ErrDeviceBusy         = errors.New("capture device not readable")
	ErrDevice             = errors.New("capture device error")
	ErrFinalize           = errors.New("finalize recording")
	ErrInvalidTransition  = errors.New("invalid capture transition")
	ErrClosed             = errors.New("capture session closed")
)

// Constraints is the requested processing and format for a device stream.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       int
}

// Preferred asks for the full voice-processing chain at sampleRate.
func Preferred(sampleRate int) Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       sampleRate,
	}
}

// Minimal asks for any audio input at all.
func Minimal() Constraints {
	return Constraints{}
}

// Stream is an exclusively owned, open device stream.
type Stream interface {
	ID() string
	SampleRate() int
	Close() error
}

// DeviceProvider opens device streams. Rejections wrap one of the capture sentinels.
type DeviceProvider interface {
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Event is one recorder emission: a data chunk or an asynchronous failure.
type Event struct {
	Chunk []byte
	Err   error
}

// Recorder turns a stream into an ordered chunk sequence.
//
// Stop halts recording, delivers any residual data, and closes Events. It must
// be safe to call more than once. Finalize assembles chunks into a container.
type Recorder interface {
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Events() <-chan Event
	Finalize(chunks [][]byte) ([]byte, error)
}

// RecorderProvider lists the codecs it can produce and builds recorders.
type RecorderProvider interface {
	SupportedCodecs() []string
	NewRecorder(stream Stream, codec string, interval time.Duration) (Recorder, error)
}

// classify maps an unclassified error to ErrDevice.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrCaptureUnsupported,
		ErrPermissionDenied,
		ErrDeviceNotFound,
		ErrDeviceUnsupported,
		ErrDeviceBusy,
		ErrDevice,
		ErrFinalize,
		ErrClosed,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(ErrDevice, err)
}

// retryable reports whether a failed preferred open may be retried with Minimal.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrCaptureUnsupported) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
