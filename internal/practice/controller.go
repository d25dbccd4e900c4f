// Package practice sequences capture around an external practice timeline and
// hands the finished recording to a presenter.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/fsm"
	"github.com/rbright/shadow/internal/ipc"
)

const (
	DefaultGracePeriod = 4000 * time.Millisecond

	handleTimeout = 5 * time.Second
)

var (
	ErrSessionActive  = errors.New("a capture session is already active")
	ErrAlreadyRunning = errors.New("practice controller already running")
	ErrStopped        = errors.New("practice controller stopped")
)

// Session is the controller-facing subset of a capture session.
type Session interface {
	ID() string
	State() fsm.State
	Start(context.Context) error
	Pause() error
	Resume() error
	Stop(context.Context) (*artifact.Artifact, error)
	Artifact() *artifact.Artifact
	FormattedElapsed() string
	Close()
}

// Indicator is the controller-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowPaused(context.Context)
	ShowCompleting(context.Context)
	ShowProcessing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	Hide(context.Context)
}

type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowPaused(context.Context)        {}
func (noopIndicator) ShowCompleting(context.Context)    {}
func (noopIndicator) ShowProcessing(context.Context)    {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) Hide(context.Context)              {}

// Timer is a pending grace-period callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Options struct {
	Mode        Mode
	Record      bool
	GracePeriod time.Duration

	NewSession func() Session
	Presenter  Presenter
	Indicator  Indicator
	AfterFunc  AfterFunc

	Logger *slog.Logger
}

type eventKind int

const (
	eventStart eventKind = iota + 1
	eventPause
	eventResume
	eventComplete
	eventFinish
	eventGraceExpired
)

func (k eventKind) String() string {
	switch k {
	case eventStart:
		return "start"
	case eventPause:
		return "pause"
	case eventResume:
		return "resume"
	case eventComplete:
		return "complete"
	case eventFinish:
		return "finish"
	case eventGraceExpired:
		return "grace_expired"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type event struct {
	kind  eventKind
	gen   uint64
	reply chan error
}

func (e event) respond(err error) {
	if e.reply != nil {
		e.reply <- err
	}
}

type phase int

const (
	phaseOpen phase = iota
	phaseFinishing
	phaseFinished
)

// Controller owns at most one capture session and serializes every session
// call through the Run loop.
type Controller struct {
	opts      Options
	indicator Indicator
	presenter Presenter
	afterFunc AfterFunc
	logger    *slog.Logger

	events chan event
	done   chan struct{}

	mu       sync.Mutex
	running  bool
	phase    phase
	session  Session
	grace    Timer
	graceGen uint64
}

func NewController(opts Options) *Controller {
	if opts.Mode == "" {
		opts.Mode = ModeSightTranslation
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	c := &Controller{
		opts:      opts,
		indicator: opts.Indicator,
		presenter: opts.Presenter,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
		events:    make(chan event, 8),
		done:      make(chan struct{}),
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.presenter == nil {
		c.presenter = PresenterFunc(func(context.Context, Handoff) error { return nil })
	}
	if c.afterFunc == nil {
		c.afterFunc = realAfterFunc
	}
	return c
}

// Start begins capture. It is a no-op when recording is disabled.
func (c *Controller) Start(ctx context.Context) error { return c.send(ctx, eventStart) }

// Pause suspends capture while recording.
func (c *Controller) Pause(ctx context.Context) error { return c.send(ctx, eventPause) }

// Resume continues a paused capture.
func (c *Controller) Resume(ctx context.Context) error { return c.send(ctx, eventResume) }

// Complete reports natural completion of the practice timeline and arms the
// grace timer when capture is still recording.
func (c *Controller) Complete(ctx context.Context) error { return c.send(ctx, eventComplete) }

// Finish requests an immediate stop and handoff. It returns once the request
// is accepted, not when presentation ends.
func (c *Controller) Finish(ctx context.Context) error { return c.send(ctx, eventFinish) }

// Done closes when Run returns.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run consumes events until a finish (explicit or grace expiry) has been
// presented or ctx is cancelled. It may be called once.
func (c *Controller) Run(ctx context.Context) (Handoff, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return Handoff{}, ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	defer close(c.done)
	defer c.teardown()

	for {
		select {
		case <-ctx.Done():
			c.logInfo("practice cancelled", "error", ctx.Err().Error())
			return Handoff{}, ctx.Err()
		case ev := <-c.events:
			switch ev.kind {
			case eventGraceExpired:
				if !c.graceCurrent(ev.gen) {
					continue
				}
				c.logInfo("grace period elapsed", "grace_ms", c.opts.GracePeriod.Milliseconds())
				return c.finish(ctx), nil
			case eventFinish:
				ev.respond(nil)
				return c.finish(ctx), nil
			default:
				err := c.apply(ctx, ev.kind)
				if err != nil {
					c.logWarn("practice event rejected", "event", ev.kind.String(), "error", err.Error())
				}
				ev.respond(err)
			}
		}
	}
}

// Status returns a display state for IPC callers.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller) statusLocked() string {
	switch {
	case c.phase == phaseFinishing:
		return "finishing"
	case c.phase == phaseFinished:
		return "finished"
	case c.session == nil:
		return string(fsm.StateIdle)
	case c.grace != nil:
		return "completing"
	default:
		return string(c.session.State())
	}
}

// Handle serves IPC commands for the owning practice run.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	snap := c.snapshot()
	resp := ipc.Response{State: snap.status, Elapsed: snap.elapsed, SessionID: snap.sessionID}

	if req.Command == ipc.CommandStatus {
		resp.OK = true
		resp.Message = "status"
		return resp
	}

	kind, ok := commandEvent(req.Command)
	if !ok {
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}

	if snap.phase != phaseOpen {
		if kind == eventFinish {
			resp.OK = true
			resp.Message = "finish already requested"
			return resp
		}
		resp.Error = fmt.Sprintf("cannot %s while %s", req.Command, snap.status)
		return resp
	}

	switch kind {
	case eventStart:
		if snap.sessionState != "" && fsm.Active(snap.sessionState) {
			resp.Error = ErrSessionActive.Error()
			return resp
		}
	case eventPause:
		if snap.sessionState != fsm.StateRecording {
			resp.Error = fmt.Sprintf("cannot pause from state %s", snap.status)
			return resp
		}
	case eventResume:
		if snap.sessionState != fsm.StatePaused {
			resp.Error = fmt.Sprintf("cannot resume from state %s", snap.status)
			return resp
		}
	case eventComplete:
		if snap.graceArmed {
			resp.OK = true
			resp.Message = "completion already pending"
			return resp
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()
	if err := c.send(sendCtx, kind); err != nil {
		resp.Error = err.Error()
		return resp
	}

	resp.OK = true
	resp.State = c.Status()
	resp.Message = req.Command + " accepted"
	return resp
}

func commandEvent(command string) (eventKind, bool) {
	switch command {
	case ipc.CommandStart:
		return eventStart, true
	case ipc.CommandPause:
		return eventPause, true
	case ipc.CommandResume:
		return eventResume, true
	case ipc.CommandComplete:
		return eventComplete, true
	case ipc.CommandFinish:
		return eventFinish, true
	default:
		return 0, false
	}
}

type snapshot struct {
	phase        phase
	status       string
	sessionState fsm.State
	sessionID    string
	elapsed      string
	graceArmed   bool
}

func (c *Controller) snapshot() snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := snapshot{
		phase:      c.phase,
		status:     c.statusLocked(),
		graceArmed: c.grace != nil,
	}
	if c.session != nil {
		snap.sessionState = c.session.State()
		snap.sessionID = c.session.ID()
		snap.elapsed = c.session.FormattedElapsed()
	}
	return snap
}

// send enqueues an event and waits for the loop to apply it.
func (c *Controller) send(ctx context.Context, kind eventKind) error {
	reply := make(chan error, 1)
	select {
	case c.events <- event{kind: kind, reply: reply}:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) apply(ctx context.Context, kind eventKind) error {
	switch kind {
	case eventStart:
		return c.start(ctx)
	case eventPause:
		return c.pause(ctx)
	case eventResume:
		return c.resume(ctx)
	case eventComplete:
		c.complete(ctx)
		return nil
	default:
		return fmt.Errorf("unknown event %s", kind)
	}
}

func (c *Controller) start(ctx context.Context) error {
	if !c.opts.Record {
		c.logInfo("recording disabled; practice runs without capture")
		return nil
	}
	if c.opts.NewSession == nil {
		return errors.New("no capture session factory configured")
	}

	c.mu.Lock()
	previous := c.session
	if previous != nil && fsm.Active(previous.State()) {
		c.mu.Unlock()
		return ErrSessionActive
	}
	session := c.opts.NewSession()
	c.session = session
	c.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	if err := session.Start(ctx); err != nil {
		c.indicator.ShowError(context.Background(), "Unable to start recording")
		return fmt.Errorf("start capture: %w", err)
	}
	c.indicator.ShowRecording(ctx)
	c.logInfo("practice recording started", "session_id", session.ID(), "mode", string(c.opts.Mode))
	return nil
}

func (c *Controller) pause(ctx context.Context) error {
	session := c.currentSession()
	if session == nil || session.State() != fsm.StateRecording {
		return nil
	}
	if err := session.Pause(); err != nil {
		return fmt.Errorf("pause capture: %w", err)
	}
	c.indicator.ShowPaused(ctx)
	return nil
}

func (c *Controller) resume(ctx context.Context) error {
	session := c.currentSession()
	if session == nil || session.State() != fsm.StatePaused {
		return nil
	}
	if err := session.Resume(); err != nil {
		return fmt.Errorf("resume capture: %w", err)
	}
	c.indicator.ShowRecording(ctx)
	return nil
}

// complete arms the grace timer once, and only while actively recording.
func (c *Controller) complete(ctx context.Context) {
	c.mu.Lock()
	if c.grace != nil || c.session == nil || c.session.State() != fsm.StateRecording {
		c.mu.Unlock()
		return
	}
	c.graceGen++
	gen := c.graceGen
	c.grace = c.afterFunc(c.opts.GracePeriod, func() {
		c.post(event{kind: eventGraceExpired, gen: gen})
	})
	c.mu.Unlock()

	c.indicator.ShowCompleting(ctx)
	c.logInfo("practice complete; grace timer armed", "grace_ms", c.opts.GracePeriod.Milliseconds())
}

// post delivers a loop-internal event unless Run has already returned.
func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) graceCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grace != nil && gen == c.graceGen
}

func (c *Controller) disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grace == nil {
		return
	}
	c.grace.Stop()
	c.grace = nil
	c.graceGen++
}

// finish stops capture and presents the result. Presentation is attempted
// even when stopping fails.
func (c *Controller) finish(ctx context.Context) Handoff {
	c.disarm()
	c.setPhase(phaseFinishing)
	defer c.setPhase(phaseFinished)

	handoff := Handoff{Mode: c.opts.Mode, Elapsed: "00:00"}
	degraded := false

	if session := c.currentSession(); session != nil {
		handoff.SessionID = session.ID()
		recording, err := session.Stop(ctx)
		c.indicator.CueStop(context.Background())
		if err != nil {
			c.logWarn("stop capture failed; using available recording",
				"session_id", session.ID(),
				"error", err.Error(),
			)
			recording = session.Artifact()
			degraded = recording == nil
		}
		handoff.Artifact = recording
		handoff.Elapsed = session.FormattedElapsed()
	}

	if degraded {
		handoff = Minimal(c.opts.Mode)
	}

	c.indicator.ShowProcessing(ctx)
	if err := c.presenter.Present(ctx, handoff); err != nil {
		c.logError("present practice result failed", "error", err.Error())
		c.indicator.ShowError(context.Background(), "Unable to present results")
		if handoff.HasError {
			return handoff
		}
		handoff = Minimal(c.opts.Mode)
		if err := c.presenter.Present(ctx, handoff); err != nil {
			c.logError("present minimal result failed", "error", err.Error())
		}
		return handoff
	}

	if handoff.HasError {
		c.indicator.ShowError(context.Background(), "Recording unavailable")
	} else {
		c.indicator.CueComplete(context.Background())
	}
	return handoff
}

// teardown runs on every Run exit path.
func (c *Controller) teardown() {
	c.disarm()

	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.Close()
	}

	hideCtx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	c.indicator.Hide(hideCtx)
}

func (c *Controller) currentSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) setPhase(p phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Controller) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
