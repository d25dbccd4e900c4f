// Package capability describes what the host can capture, decode, and encode.
package capability

import (
	"context"
	"slices"
	"sync"

	"github.com/rbright/shadow/internal/artifact"
)

// Profile is computed once per process and read-only afterwards.
type Profile struct {
	DeviceCapture    bool
	CaptureCodecs    []string
	DecodableTypes   []string
	EncoderAvailable bool
}

// SupportsCapture reports whether codec is among the capture codecs.
func (p Profile) SupportsCapture(codec string) bool {
	return slices.Contains(p.CaptureCodecs, codec)
}

// CanDecode compares base MIME types, ignoring codec parameters.
func (p Profile) CanDecode(mime string) bool {
	base := artifact.BaseType(mime)
	if base == "" {
		return false
	}
	for _, candidate := range p.DecodableTypes {
		if artifact.BaseType(candidate) == base {
			return true
		}
	}
	return false
}

// Detector computes a Profile lazily and caches it.
type Detector struct {
	probe func(context.Context) Profile

	once    sync.Once
	profile Profile
}

func NewDetector(probe func(context.Context) Profile) *Detector {
	return &Detector{probe: probe}
}

// Static returns a detector that always reports p.
func Static(p Profile) *Detector {
	return NewDetector(func(context.Context) Profile { return p })
}

// Profile runs the probe on first use. Later calls return the cached value.
func (d *Detector) Profile(ctx context.Context) Profile {
	d.once.Do(func() {
		if d.probe != nil {
			d.profile = d.probe(ctx)
		}
		d.profile.CaptureCodecs = slices.Clone(d.profile.CaptureCodecs)
		d.profile.DecodableTypes = slices.Clone(d.profile.DecodableTypes)
	})
	return Profile{
		DeviceCapture:    d.profile.DeviceCapture,
		CaptureCodecs:    slices.Clone(d.profile.CaptureCodecs),
		DecodableTypes:   slices.Clone(d.profile.DecodableTypes),
		EncoderAvailable: d.profile.EncoderAvailable,
	}
}
