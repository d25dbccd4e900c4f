package practice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/fsm"
)

var errBoom = errors.New("boom")

type fakeSession struct {
	mu sync.Mutex

	id        string
	state     fsm.State
	startErr  error
	stopErr   error
	recording *artifact.Artifact
	available *artifact.Artifact
	elapsed   string

	stopCalls  int
	closeCalls int
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{
		id:        id,
		state:     fsm.StateIdle,
		recording: artifact.New([]byte("RIFF....WAVE"), artifact.MIMEWAV, 5*time.Second, 5),
		elapsed:   "00:05",
	}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSession) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		s.state = fsm.StateFailed
		return s.startErr
	}
	s.state = fsm.StateRecording
	return nil
}

func (s *fakeSession) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != fsm.StateRecording {
		return errors.New("not recording")
	}
	s.state = fsm.StatePaused
	return nil
}

func (s *fakeSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != fsm.StatePaused {
		return errors.New("not paused")
	}
	s.state = fsm.StateRecording
	return nil
}

func (s *fakeSession) Stop(context.Context) (*artifact.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	if s.stopErr != nil {
		s.state = fsm.StateFailed
		return nil, s.stopErr
	}
	s.state = fsm.StateStopped
	return s.recording, nil
}

func (s *fakeSession) Artifact() *artifact.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == fsm.StateStopped {
		return s.recording
	}
	return s.available
}

func (s *fakeSession) FormattedElapsed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.state == fsm.StateRecording || s.state == fsm.StatePaused {
		s.state = fsm.StateFailed
	}
}

func (s *fakeSession) counts() (stops int, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls, s.closeCalls
}

type sessionFactory struct {
	mu       sync.Mutex
	sessions []*fakeSession
	prepare  func(*fakeSession)
}

func (f *sessionFactory) New() Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := newFakeSession("session-" + string(rune('a'+len(f.sessions))))
	if f.prepare != nil {
		f.prepare(s)
	}
	f.sessions = append(f.sessions, s)
	return s
}

func (f *sessionFactory) created() []*fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSession(nil), f.sessions...)
}

type manualTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return &manualHandle{clock: m, timer: t}
}

func (m *manualClock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func (m *manualClock) timer(i int) manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.timers[i]
}

// fire runs timer i unless it was stopped.
func (m *manualClock) fire(i int) bool {
	m.mu.Lock()
	t := m.timers[i]
	if t.stopped || t.fired {
		m.mu.Unlock()
		return false
	}
	t.fired = true
	f := t.f
	m.mu.Unlock()
	f()
	return true
}

type manualHandle struct {
	clock *manualClock
	timer *manualTimer
}

func (h *manualHandle) Stop() bool {
	h.clock.mu.Lock()
	defer h.clock.mu.Unlock()
	active := !h.timer.stopped && !h.timer.fired
	h.timer.stopped = true
	return active
}

type recordingPresenter struct {
	mu       sync.Mutex
	handoffs []Handoff
	at       []time.Time
	failures int
}

func (p *recordingPresenter) Present(_ context.Context, h Handoff) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handoffs = append(p.handoffs, h)
	p.at = append(p.at, time.Now())
	if p.failures > 0 {
		p.failures--
		return errBoom
	}
	return nil
}

func (p *recordingPresenter) presented() []Handoff {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handoff(nil), p.handoffs...)
}

type fakeIndicator struct {
	recording  atomic.Int32
	paused     atomic.Int32
	completing atomic.Int32
	processing atomic.Int32
	errors     atomic.Int32
	stopCues   atomic.Int32
	complete   atomic.Int32
	hides      atomic.Int32
}

func (f *fakeIndicator) ShowRecording(context.Context)     { f.recording.Add(1) }
func (f *fakeIndicator) ShowPaused(context.Context)        { f.paused.Add(1) }
func (f *fakeIndicator) ShowCompleting(context.Context)    { f.completing.Add(1) }
func (f *fakeIndicator) ShowProcessing(context.Context)    { f.processing.Add(1) }
func (f *fakeIndicator) ShowError(context.Context, string) { f.errors.Add(1) }
func (f *fakeIndicator) CueStop(context.Context)           { f.stopCues.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context)       { f.complete.Add(1) }
func (f *fakeIndicator) Hide(context.Context)              { f.hides.Add(1) }

type runResult struct {
	handoff Handoff
	err     error
}

func runAsync(ctx context.Context, c *Controller) <-chan runResult {
	out := make(chan runResult, 1)
	go func() {
		h, err := c.Run(ctx)
		out <- runResult{handoff: h, err: err}
	}()
	return out
}

func awaitRun(t *testing.T, ch <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not finish")
		return runResult{}
	}
}
