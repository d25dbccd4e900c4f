package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const defaultFFmpeg = "ffmpeg"

// FFmpegProvider loads encoders backed by an ffmpeg binary with libmp3lame.
type FFmpegProvider struct {
	Path string
}

func (p FFmpegProvider) Name() string { return "ffmpeg" }

func (p FFmpegProvider) binary() string {
	if path := strings.TrimSpace(p.Path); path != "" {
		return path
	}
	return defaultFFmpeg
}

// Check verifies the binary exists and lists the libmp3lame encoder.
func (p FFmpegProvider) Check(ctx context.Context) error {
	path, err := exec.LookPath(p.binary())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	output, err := exec.CommandContext(ctx, path, "-hide_banner", "-encoders").Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: list ffmpeg encoders: %v", ErrUnavailable, err)
	}
	if !strings.Contains(string(output), "libmp3lame") {
		return fmt.Errorf("%w: ffmpeg at %s lacks libmp3lame", ErrUnavailable, path)
	}
	return nil
}

func (p FFmpegProvider) Load(ctx context.Context) (Encoder, error) {
	if err := p.Check(ctx); err != nil {
		return nil, err
	}
	return NewFFmpegEncoder(p.binary()), nil
}

// FFmpegEncoder streams float32 PCM through one ffmpeg process.
type FFmpegEncoder struct {
	path string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	channels int
	stderr   lockedBuffer
	done     chan struct{}

	mu        sync.Mutex
	output    bytes.Buffer
	readErr   error
	finalized bool
}

func NewFFmpegEncoder(path string) *FFmpegEncoder {
	if strings.TrimSpace(path) == "" {
		path = defaultFFmpeg
	}
	return &FFmpegEncoder{path: path}
}

// Configure starts the ffmpeg process for the given input layout.
func (e *FFmpegEncoder) Configure(sampleRate int, channels int, quality int) error {
	if err := validateConfig(sampleRate, channels, quality); err != nil {
		return err
	}
	if e.cmd != nil {
		return errors.New("ffmpeg encoder already configured")
	}

	cmd := exec.Command(e.path,
		"-hide_banner",
		"-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-c:a", "libmp3lame",
		"-q:a", strconv.Itoa(quality),
		"-f", "mp3",
		"pipe:1",
	)
	cmd.Stderr = &e.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start ffmpeg: %v", ErrUnavailable, err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.channels = channels
	e.done = make(chan struct{})
	go e.collect(stdout)
	return nil
}

// Encode writes samples to ffmpeg and returns whatever output is ready.
func (e *FFmpegEncoder) Encode(channels [][]float32) ([]byte, error) {
	if e.cmd == nil {
		return nil, errors.New("ffmpeg encoder not configured")
	}
	raw, err := interleaveF32LE(channels, e.channels)
	if err != nil {
		return nil, err
	}
	if _, err := e.stdin.Write(raw); err != nil {
		return nil, e.processError("write samples", err)
	}
	return e.drain(), nil
}

// Finalize flushes the encoder and waits for ffmpeg to exit.
func (e *FFmpegEncoder) Finalize() ([]byte, error) {
	if e.cmd == nil {
		return nil, errors.New("ffmpeg encoder not configured")
	}
	e.mu.Lock()
	if e.finalized {
		e.mu.Unlock()
		return nil, nil
	}
	e.finalized = true
	e.mu.Unlock()

	_ = e.stdin.Close()
	<-e.done
	if err := e.cmd.Wait(); err != nil {
		return nil, e.processError("ffmpeg exit", err)
	}

	e.mu.Lock()
	readErr := e.readErr
	e.mu.Unlock()
	if readErr != nil {
		return nil, fmt.Errorf("read ffmpeg output: %w", readErr)
	}
	return e.drain(), nil
}

// Close terminates ffmpeg if Finalize has not completed.
func (e *FFmpegEncoder) Close() error {
	if e.cmd == nil {
		return nil
	}
	e.mu.Lock()
	finalized := e.finalized
	e.mu.Unlock()
	if finalized {
		return nil
	}
	_ = e.stdin.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	<-e.done
	_ = e.cmd.Wait()
	return nil
}

func (e *FFmpegEncoder) collect(stdout io.Reader) {
	defer close(e.done)
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			e.mu.Lock()
			e.output.Write(buf[:n])
			e.mu.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.mu.Lock()
				e.readErr = err
				e.mu.Unlock()
			}
			return
		}
	}
}

func (e *FFmpegEncoder) drain() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.output.Len() == 0 {
		return nil
	}
	out := make([]byte, e.output.Len())
	copy(out, e.output.Bytes())
	e.output.Reset()
	return out
}

func (e *FFmpegEncoder) processError(step string, err error) error {
	detail := strings.TrimSpace(e.stderr.String())
	if detail == "" {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %s", step, err, detail)
}

// lockedBuffer guards stderr, which exec fills from its own goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
