package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeStream struct {
	id     string
	closes atomic.Int32
}

func (s *fakeStream) ID() string      { return s.id }
func (s *fakeStream) SampleRate() int { return 16000 }
func (s *fakeStream) Close() error {
	s.closes.Add(1)
	return nil
}

type fakeDevices struct {
	mu     sync.Mutex
	errs   []error
	calls  []Constraints
	stream *fakeStream
}

func (d *fakeDevices) Open(_ context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := len(d.calls)
	d.calls = append(d.calls, c)
	if idx < len(d.errs) && d.errs[idx] != nil {
		return nil, d.errs[idx]
	}
	if d.stream == nil {
		d.stream = &fakeStream{id: "fake-source"}
	}
	return d.stream, nil
}

func (d *fakeDevices) Calls() []Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Constraints(nil), d.calls...)
}

type fakeRecorder struct {
	events chan Event

	mu       sync.Mutex
	paused   bool
	stopOnce sync.Once
	stops    atomic.Int32
	finalize atomic.Int32

	finalizeErr  error
	finalizeGate chan struct{}
	startErr     error
	startEntered chan struct{}
	startGate    chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{events: make(chan Event, 64)}
}

func (r *fakeRecorder) Start() error {
	if r.startEntered != nil {
		close(r.startEntered)
	}
	if r.startGate != nil {
		<-r.startGate
	}
	return r.startErr
}

func (r *fakeRecorder) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
	return nil
}

func (r *fakeRecorder) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.stops.Add(1)
	r.stopOnce.Do(func() { close(r.events) })
	return nil
}

func (r *fakeRecorder) Events() <-chan Event { return r.events }

func (r *fakeRecorder) Finalize(chunks [][]byte) ([]byte, error) {
	r.finalize.Add(1)
	if r.finalizeGate != nil {
		<-r.finalizeGate
	}
	if r.finalizeErr != nil {
		return nil, r.finalizeErr
	}
	return bytes.Join(chunks, nil), nil
}

// emit delivers a chunk unless the recorder is paused.
func (r *fakeRecorder) emit(chunk []byte) {
	r.mu.Lock()
	paused := r.paused
	r.mu.Unlock()
	if paused {
		return
	}
	r.events <- Event{Chunk: chunk}
}

func (r *fakeRecorder) fail(err error) {
	r.events <- Event{Err: err}
}

type fakeRecorders struct {
	codecs   []string
	recorder *fakeRecorder
	err      error
	codec    string
}

func (p *fakeRecorders) SupportedCodecs() []string { return p.codecs }

func (p *fakeRecorders) NewRecorder(_ Stream, codec string, _ time.Duration) (Recorder, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.codec = codec
	return p.recorder, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")
