// Package codec provides MP3 encoders behind a loadable module boundary.
package codec

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// TargetMIME is the output type every encoder in this package produces.
	TargetMIME = "audio/mpeg"

	DefaultQuality = 2
)

var (
	ErrUnavailable = errors.New("encoder unavailable")
	ErrUnsupported = errors.New("encoder configuration unsupported")
)

// Encoder turns per-channel float32 samples into MP3 segments.
//
// Configure must precede Encode. Segments returned by Encode and Finalize are
// concatenated in call order to form the output stream.
type Encoder interface {
	Configure(sampleRate int, channels int, quality int) error
	Encode(channels [][]float32) ([]byte, error)
	Finalize() ([]byte, error)
	Close() error
}

// Provider loads an encoder module.
type Provider interface {
	Name() string
	Load(ctx context.Context) (Encoder, error)
}

// Checker reports cheaply whether Load can be expected to succeed.
type Checker interface {
	Check(ctx context.Context) error
}

// Available runs p's Check when it has one.
func Available(ctx context.Context, p Provider) bool {
	if p == nil {
		return false
	}
	checker, ok := p.(Checker)
	if !ok {
		return true
	}
	return checker.Check(ctx) == nil
}

func validateConfig(sampleRate int, channels int, quality int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupported, sampleRate)
	}
	if channels < 1 || channels > 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupported, channels)
	}
	if quality < 0 || quality > 9 {
		return fmt.Errorf("%w: vbr quality %d", ErrUnsupported, quality)
	}
	return nil
}

// interleaveF32LE packs per-channel samples as interleaved little-endian float32.
func interleaveF32LE(channels [][]float32, want int) ([]byte, error) {
	if len(channels) != want {
		return nil, fmt.Errorf("expected %d channels, got %d", want, len(channels))
	}
	if want == 0 {
		return nil, nil
	}
	frames := len(channels[0])
	for i, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d", i, len(ch), frames)
		}
	}

	out := make([]byte, frames*want*4)
	at := 0
	for f := 0; f < frames; f++ {
		for c := 0; c < want; c++ {
			binary.LittleEndian.PutUint32(out[at:], math.Float32bits(channels[c][f]))
			at += 4
		}
	}
	return out, nil
}
