// Package capture owns one microphone recording session from request to artifact.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/capability"
	"github.com/rbright/shadow/internal/fsm"
)

const (
	defaultSampleRate    = 16000
	defaultChunkInterval = 100 * time.Millisecond
)

// DefaultCodecs is the capture codec preference order.
var DefaultCodecs = []string{
	artifact.MIMEWebM,
	artifact.MIMEOgg,
	artifact.MIMEMP4,
	artifact.MIMEWAV,
}

// Options wires a session to its device, recorder, and host capabilities.
type Options struct {
	Devices      DeviceProvider
	Recorders    RecorderProvider
	Capabilities *capability.Detector
	Handles      *artifact.HandleStore

	PreferredCodecs []string
	SampleRate      int
	ChunkInterval   time.Duration

	// DebugDir receives a copy of every finalized artifact when non-empty.
	DebugDir string

	Logger *slog.Logger
	Now    func() time.Time
}

// Session records one take. All methods are safe for concurrent use.
type Session struct {
	id   string
	opts Options

	mu        sync.Mutex
	state     fsm.State
	closed    bool
	stream    Stream
	recorder  Recorder
	codec     string
	chunks    [][]byte
	err       error
	artifact  *artifact.Artifact
	elapsed   time.Duration
	runningAt time.Time

	consumerDone chan struct{}
	stopDone     chan struct{}
}

// NewSession returns an idle session.
func NewSession(opts Options) *Session {
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}
	if len(opts.PreferredCodecs) == 0 {
		opts.PreferredCodecs = DefaultCodecs
	}
	if opts.Capabilities == nil {
		opts.Capabilities = capability.Static(capability.Profile{DeviceCapture: opts.Devices != nil})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		id:    uuid.NewString(),
		opts:  opts,
		state: fsm.StateIdle,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the last classified failure.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Artifact returns the finalized recording, or nil before Stop completes.
func (s *Session) Artifact() *artifact.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Codec returns the negotiated capture codec.
func (s *Session) Codec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

// ChunkCount reports how many chunks have been appended so far.
func (s *Session) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// PlayableHandle returns the live handle for the finalized artifact.
func (s *Session) PlayableHandle() (artifact.Handle, bool) {
	if s.opts.Handles == nil {
		return artifact.Handle{}, false
	}
	h, ok := s.opts.Handles.Current()
	if !ok {
		return artifact.Handle{}, false
	}
	if a := s.Artifact(); a == nil || a.ID() != h.ArtifactID {
		return artifact.Handle{}, false
	}
	return h, true
}

// Elapsed is the time spent in the recording state.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

// FormattedElapsed renders Elapsed as zero-padded MM:SS.
func (s *Session) FormattedElapsed() string {
	return FormatElapsed(s.Elapsed())
}

// FormatElapsed renders whole seconds as MM:SS. Minutes are not capped at 59.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Start requests the device and begins recording.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.transitionLocked(fsm.EventStart); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	profile := s.opts.Capabilities.Profile(ctx)
	if !profile.DeviceCapture || s.opts.Devices == nil || s.opts.Recorders == nil {
		return s.failStart(ErrCaptureUnsupported)
	}

	codec, ok := negotiateCodec(s.opts.PreferredCodecs, s.opts.Recorders.SupportedCodecs())
	if !ok {
		return s.failStart(fmt.Errorf("%w: no supported recording codec", ErrCaptureUnsupported))
	}

	stream, err := s.opts.Devices.Open(ctx, Preferred(s.opts.SampleRate))
	if err != nil {
		if !retryable(ctx, err) {
			return s.failStart(err)
		}
		s.logWarn("preferred capture constraints rejected; retrying with minimal set", "error", err.Error())
		stream, err = s.opts.Devices.Open(ctx, Minimal())
		if err != nil {
			return s.failStart(err)
		}
	}

	recorder, err := s.opts.Recorders.NewRecorder(stream, codec, s.opts.ChunkInterval)
	if err != nil {
		_ = stream.Close()
		return s.failStart(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = stream.Close()
		return s.failStart(ErrClosed)
	}
	s.stream = stream
	s.recorder = recorder
	s.codec = codec
	s.mu.Unlock()

	if err := recorder.Start(); err != nil {
		s.mu.Lock()
		rec, st := s.detachLocked()
		s.mu.Unlock()
		release(rec, st)
		return s.failStart(err)
	}

	s.mu.Lock()
	if s.closed || s.recorder != recorder {
		// Close ran during recorder.Start and already released the stream.
		s.mu.Unlock()
		_ = recorder.Stop()
		return s.failStart(ErrClosed)
	}
	if err := s.transitionLocked(fsm.EventGranted); err != nil {
		rec, st := s.detachLocked()
		s.mu.Unlock()
		release(rec, st)
		return err
	}
	s.runningAt = s.opts.Now()
	s.consumerDone = make(chan struct{})
	events := recorder.Events()
	done := s.consumerDone
	s.mu.Unlock()

	go s.consume(events, done)

	s.logInfo("capture started", "session_id", s.id, "codec", codec, "stream", stream.ID())
	return nil
}

// Pause freezes the elapsed counter and suspends the recorder.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fsm.Transition(s.state, fsm.EventPause); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if s.recorder == nil {
		return ErrClosed
	}
	if err := s.recorder.Pause(); err != nil {
		return classify(err)
	}
	s.elapsed = s.elapsedLocked()
	s.runningAt = time.Time{}
	return s.transitionLocked(fsm.EventPause)
}

// Resume continues appending to the same chunk sequence.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fsm.Transition(s.state, fsm.EventResume); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	if s.recorder == nil {
		return ErrClosed
	}
	if err := s.recorder.Resume(); err != nil {
		return classify(err)
	}
	s.runningAt = s.opts.Now()
	return s.transitionLocked(fsm.EventResume)
}

// Stop finalizes the recording into an artifact and releases the stream.
//
// In stopped it returns the existing artifact; in idle it returns nil. Callers
// racing an in-flight stop wait for it and share its result.
func (s *Session) Stop(ctx context.Context) (*artifact.Artifact, error) {
	s.mu.Lock()
	switch s.state {
	case fsm.StateIdle:
		s.mu.Unlock()
		return nil, nil
	case fsm.StateStopped:
		a := s.artifact
		s.mu.Unlock()
		return a, nil
	case fsm.StateFailed:
		err := s.err
		s.mu.Unlock()
		return nil, err
	case fsm.StateStopping:
		wait := s.stopDone
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == fsm.StateFailed {
			return nil, s.err
		}
		return s.artifact, nil
	}

	if err := s.transitionLocked(fsm.EventStop); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.elapsed = s.elapsedLocked()
	s.runningAt = time.Time{}
	s.stopDone = make(chan struct{})
	rec, st := s.detachLocked()
	done := s.consumerDone
	stopDone := s.stopDone
	s.mu.Unlock()

	defer close(stopDone)

	if rec != nil {
		_ = rec.Stop()
	}
	if done != nil {
		<-done
	}
	if st != nil {
		_ = st.Close()
	}

	s.mu.Lock()
	chunks := slices.Clone(s.chunks)
	codec := s.codec
	elapsed := s.elapsed
	s.mu.Unlock()

	var data []byte
	var err error
	if rec == nil {
		err = ErrClosed
	} else {
		data, err = rec.Finalize(chunks)
	}
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			err = fmt.Errorf("%w: %v", ErrFinalize, err)
		}
		s.mu.Lock()
		s.err = err
		_ = s.transitionLocked(fsm.EventFail)
		s.mu.Unlock()
		s.logError("capture finalize failed", "session_id", s.id, "error", err.Error())
		return nil, err
	}

	out := artifact.New(data, codec, elapsed, len(chunks))
	if s.opts.Handles != nil {
		s.issueHandle(out)
	}
	s.writeDebugArtifact(out)

	s.mu.Lock()
	s.artifact = out
	_ = s.transitionLocked(fsm.EventFinalized)
	s.mu.Unlock()

	s.logInfo("capture stopped",
		"session_id", s.id,
		"chunks", out.ChunkCount(),
		"bytes", out.Size(),
		"elapsed", FormatElapsed(elapsed),
	)
	return out, nil
}

// Close releases the stream and playable handle in any state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.state == fsm.StateRecording || s.state == fsm.StatePaused {
		s.elapsed = s.elapsedLocked()
		s.runningAt = time.Time{}
		s.err = ErrClosed
		_ = s.transitionLocked(fsm.EventFail)
	}
	rec, st := s.detachLocked()
	s.mu.Unlock()

	release(rec, st)
	if s.opts.Handles != nil {
		_ = s.opts.Handles.Revoke()
	}
}

// issueHandle publishes a playable handle for a. A Close that lands while the
// file is being written has already revoked the store, so the new handle is
// released here instead.
func (s *Session) issueHandle(a *artifact.Artifact) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	handle, err := s.opts.Handles.Issue(a)
	if err != nil {
		s.logWarn("unable to issue playable handle", "error", err.Error())
		return
	}

	s.mu.Lock()
	closed = s.closed
	s.mu.Unlock()
	if closed {
		_ = s.opts.Handles.Release(handle)
	}
}

// consume appends recorder chunks in production order until Events closes.
func (s *Session) consume(events <-chan Event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		if ev.Err != nil {
			s.failRecording(ev.Err)
			continue
		}
		if len(ev.Chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, ev.Chunk)
		s.mu.Unlock()
	}
}

// failRecording handles asynchronous recorder failures during recording/paused.
func (s *Session) failRecording(cause error) {
	s.mu.Lock()
	if s.state != fsm.StateRecording && s.state != fsm.StatePaused {
		s.mu.Unlock()
		return
	}
	s.elapsed = s.elapsedLocked()
	s.runningAt = time.Time{}
	s.err = classify(cause)
	_ = s.transitionLocked(fsm.EventFail)
	rec, st := s.detachLocked()
	err := s.err
	s.mu.Unlock()

	s.logError("capture failed", "session_id", s.id, "error", err.Error())
	// Runs on the consumer goroutine; Stop may block until Events is drained.
	go release(rec, st)
}

func (s *Session) failStart(cause error) error {
	err := classify(cause)
	s.mu.Lock()
	s.err = err
	_ = s.transitionLocked(fsm.EventFail)
	s.mu.Unlock()
	s.logError("capture start failed", "session_id", s.id, "error", err.Error())
	return err
}

func (s *Session) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	s.state = next
	return nil
}

func (s *Session) detachLocked() (Recorder, Stream) {
	rec, st := s.recorder, s.stream
	s.recorder, s.stream = nil, nil
	return rec, st
}

func (s *Session) elapsedLocked() time.Duration {
	if s.runningAt.IsZero() {
		return s.elapsed
	}
	return s.elapsed + s.opts.Now().Sub(s.runningAt)
}

func (s *Session) writeDebugArtifact(a *artifact.Artifact) {
	if s.opts.DebugDir == "" || a == nil || a.Size() == 0 {
		return
	}
	if err := os.MkdirAll(s.opts.DebugDir, 0o700); err != nil {
		s.logWarn("unable to create debug dir", "error", err.Error())
		return
	}
	timestamp := s.opts.Now().Format("20060102-150405.000")
	path := filepath.Join(s.opts.DebugDir, "capture-"+timestamp+a.Extension())
	if err := os.WriteFile(path, a.Bytes(), 0o600); err != nil {
		s.logWarn("unable to write debug audio dump", "error", err.Error())
		return
	}
	s.logDebug("wrote debug audio dump", "path", path)
}

func release(rec Recorder, st Stream) {
	if rec != nil {
		_ = rec.Stop()
	}
	if st != nil {
		_ = st.Close()
	}
}

func negotiateCodec(preferred []string, supported []string) (string, bool) {
	for _, codec := range preferred {
		if slices.Contains(supported, codec) {
			return codec, true
		}
	}
	return "", false
}

func (s *Session) logInfo(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, args...)
	}
}

func (s *Session) logWarn(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, args...)
	}
}

func (s *Session) logError(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Error(msg, args...)
	}
}

func (s *Session) logDebug(msg string, args ...any) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, args...)
	}
}
