package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/audio"
)

// Decoder turns an artifact into per-channel float32 samples.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, a *artifact.Artifact) (audio.PCM, error)
}

// WAVDecoder decodes RIFF/WAVE payloads in process.
type WAVDecoder struct{}

func (WAVDecoder) Name() string { return "wav" }

func (WAVDecoder) Decode(_ context.Context, a *artifact.Artifact) (audio.PCM, error) {
	return audio.DecodeWAV(a.Bytes())
}

// FFmpegDecoder decodes any container ffmpeg understands, downmixed to mono.
type FFmpegDecoder struct {
	Path       string
	SampleRate int
}

func (FFmpegDecoder) Name() string { return "ffmpeg" }

func (d FFmpegDecoder) Decode(ctx context.Context, a *artifact.Artifact) (audio.PCM, error) {
	path := strings.TrimSpace(d.Path)
	if path == "" {
		path = "ffmpeg"
	}
	rate := d.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"pipe:1",
	)
	cmd.Stdin = a.Reader()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return audio.PCM{}, ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return audio.PCM{}, fmt.Errorf("ffmpeg decode: %w: %s", err, detail)
		}
		return audio.PCM{}, fmt.Errorf("ffmpeg decode: %w", err)
	}
	return audio.DecodeFloat32LE(stdout.Bytes(), 1, rate), nil
}

// DecodableTypes lists input types the decoders can handle.
func DecodableTypes(ffmpegAvailable bool) []string {
	types := []string{"audio/wav", "audio/x-wav", "audio/wave"}
	if ffmpegAvailable {
		types = append(types,
			"audio/webm",
			"audio/ogg",
			"audio/mp4",
			"audio/x-m4a",
			"audio/mpeg",
			"audio/flac",
			"audio/x-flac",
			"video/webm",
		)
	}
	return types
}

// DetectType returns the artifact's MIME tag, sniffing the payload when the
// tag is missing or generic.
func DetectType(a *artifact.Artifact) string {
	base := a.BaseType()
	if base != "" && base != "application/octet-stream" {
		return a.MIME()
	}
	detected := mimetype.Detect(a.Bytes())
	return detected.String()
}
