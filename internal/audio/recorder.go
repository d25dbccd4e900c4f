package audio

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/capture"
)

const bytesPerSample = 2

// PulseRecorders builds 16-bit mono WAV recorders over Pulse streams.
type PulseRecorders struct{}

func (PulseRecorders) SupportedCodecs() []string {
	return []string{artifact.MIMEWAV}
}

// NewRecorder creates a corked record stream that emits chunks every interval.
func (PulseRecorders) NewRecorder(stream capture.Stream, codec string, interval time.Duration) (capture.Recorder, error) {
	ps, ok := stream.(*pulseStream)
	if !ok {
		return nil, fmt.Errorf("%w: stream %T is not a pulse stream", capture.ErrDeviceUnsupported, stream)
	}
	if artifact.BaseType(codec) != artifact.MIMEWAV {
		return nil, fmt.Errorf("%w: codec %q", capture.ErrDeviceUnsupported, codec)
	}

	recorder := newPulseRecorder(ps.rate, interval)
	writer := pulse.NewWriter(writerFunc(recorder.onPCM), pulseproto.FormatInt16LE)
	record, err := ps.client.NewRecord(
		writer,
		pulse.RecordSource(ps.source),
		pulse.RecordMono,
		pulse.RecordSampleRate(ps.rate),
		pulse.RecordBufferFragmentSize(uint32(recorder.chunkBytes)),
		pulse.RecordMediaName("shadow practice"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create pulse record stream: %v", capture.ErrDevice, err)
	}
	recorder.stream = record
	return recorder, nil
}

// PulseRecorder streams fixed-size PCM chunks from one record stream.
type PulseRecorder struct {
	stream     *pulse.RecordStream
	sampleRate int
	chunkBytes int

	events chan capture.Event

	mu      sync.Mutex
	pending []byte
	paused  bool
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

func newPulseRecorder(sampleRate int, interval time.Duration) *PulseRecorder {
	return &PulseRecorder{
		sampleRate: sampleRate,
		chunkBytes: chunkSize(sampleRate, interval),
		events:     make(chan capture.Event, 128),
	}
}

// chunkSize returns whole 16-bit mono frames per interval, at least one frame.
func chunkSize(sampleRate int, interval time.Duration) int {
	frames := int(int64(sampleRate) * int64(interval) / int64(time.Second))
	if frames < 1 {
		frames = 1
	}
	return frames * bytesPerSample
}

func (r *PulseRecorder) Start() error {
	if r.stream != nil {
		r.stream.Start()
	}
	return nil
}

// Pause corks the stream. Data that still arrives is dropped.
func (r *PulseRecorder) Pause() error {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
	if r.stream != nil {
		r.stream.Stop()
	}
	return nil
}

func (r *PulseRecorder) Resume() error {
	r.mu.Lock()
	r.paused = false
	r.mu.Unlock()
	if r.stream != nil {
		r.stream.Start()
	}
	return nil
}

func (r *PulseRecorder) Events() <-chan capture.Event {
	return r.events
}

// BytesCaptured reports total bytes accepted from Pulse.
func (r *PulseRecorder) BytesCaptured() int64 {
	return r.bytes.Load()
}

// Stop halts the stream, flushes residual PCM, and closes Events exactly once.
func (r *PulseRecorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}

	// Chunks already accepted by onPCM are delivered before the residue, and
	// both before Events closes.
	r.inflight.Wait()

	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(pending) > 0 {
		r.events <- capture.Event{Chunk: pending}
	}

	close(r.events)
	return nil
}

// Finalize wraps the concatenated PCM chunks in a WAV container.
func (r *PulseRecorder) Finalize(chunks [][]byte) ([]byte, error) {
	size := 0
	for _, chunk := range chunks {
		size += len(chunk)
	}
	pcm := make([]byte, 0, size)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}
	return EncodeWAV(pcm, r.sampleRate, 1), nil
}

// onPCM receives raw Pulse frames and emits chunkBytes slices to events.
func (r *PulseRecorder) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return 0, io.EOF
	}
	if r.paused {
		r.mu.Unlock()
		return len(buffer), nil
	}
	// Add under the same mutex as stopped to avoid Add/Wait races.
	r.inflight.Add(1)

	r.pending = append(r.pending, buffer...)

	chunks := make([][]byte, 0, len(r.pending)/r.chunkBytes)
	for len(r.pending) >= r.chunkBytes {
		chunk := make([]byte, r.chunkBytes)
		copy(chunk, r.pending[:r.chunkBytes])
		r.pending = r.pending[r.chunkBytes:]
		chunks = append(chunks, chunk)
	}
	r.mu.Unlock()
	defer r.inflight.Done()

	r.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		r.events <- capture.Event{Chunk: chunk}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
