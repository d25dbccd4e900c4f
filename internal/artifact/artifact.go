// Package artifact holds immutable captured or transcoded audio payloads.
package artifact

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MIMEWAV  = "audio/wav"
	MIMEMPEG = "audio/mpeg"
	MIMEWebM = "audio/webm;codecs=opus"
	MIMEOgg  = "audio/ogg;codecs=opus"
	MIMEMP4  = "audio/mp4"
)

// Artifact is a finalized audio payload. It is never mutated after New.
type Artifact struct {
	id       string
	data     []byte
	mime     string
	duration time.Duration
	chunks   int
}

// New copies data into a fresh artifact.
func New(data []byte, mime string, duration time.Duration, chunks int) *Artifact {
	owned := make([]byte, len(data))
	copy(owned, data)
	return &Artifact{
		id:       uuid.NewString(),
		data:     owned,
		mime:     strings.TrimSpace(mime),
		duration: duration,
		chunks:   chunks,
	}
}

func (a *Artifact) ID() string { return a.id }

// Bytes returns a copy of the payload.
func (a *Artifact) Bytes() []byte {
	out := make([]byte, len(a.data))
	copy(out, a.data)
	return out
}

// Reader streams the payload without copying it.
func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.data)
}

func (a *Artifact) MIME() string            { return a.mime }
func (a *Artifact) Size() int               { return len(a.data) }
func (a *Artifact) Duration() time.Duration { return a.duration }
func (a *Artifact) ChunkCount() int         { return a.chunks }

// BaseType returns the MIME type without parameters, lowercased.
func (a *Artifact) BaseType() string {
	return BaseType(a.mime)
}

// Extension returns a file extension (with dot) suited to the MIME type.
func (a *Artifact) Extension() string {
	return Extension(a.mime)
}

// Same reports whether two artifacts carry byte-identical payloads and tags.
func Same(a, b *Artifact) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.mime == b.mime && bytes.Equal(a.data, b.data)
}

// BaseType strips parameters such as ";codecs=opus".
func BaseType(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func Extension(mime string) string {
	switch BaseType(mime) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/x-m4a":
		return ".m4a"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".bin"
	}
}
