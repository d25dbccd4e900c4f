// Package indicator handles desktop state notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/shadow/internal/config"
)

const (
	persistentTimeoutMS   = 300000
	defaultErrorTimeoutMS = 1200
	dispatchTimeout       = 400 * time.Millisecond
)

// Notifier is the concrete indicator used by practice runs. It keeps a single
// replaceable desktop notification and plays short synthesized cues.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	cues           sync.WaitGroup
}

// NewNotifier creates an indicator from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowRecording signals capture start and emits the start cue.
func (n *Notifier) ShowRecording(ctx context.Context) {
	n.playCue(cueStart)
	n.show(ctx, persistentTimeoutMS, n.messages.recording)
}

// ShowPaused signals a paused capture.
func (n *Notifier) ShowPaused(ctx context.Context) {
	n.show(ctx, persistentTimeoutMS, n.messages.paused)
}

// ShowCompleting signals that the grace period is running.
func (n *Notifier) ShowCompleting(ctx context.Context) {
	n.show(ctx, persistentTimeoutMS, n.messages.completing)
}

// ShowProcessing signals the post-capture transcode and transcription state.
func (n *Notifier) ShowProcessing(ctx context.Context) {
	n.show(ctx, persistentTimeoutMS, n.messages.processing)
}

// ShowError displays an error message and emits the error cue.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(cueError)
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = defaultErrorTimeoutMS
	}
	n.showNotification(ctx, notification{summary: text, critical: true, timeoutMS: timeout})
}

// CueStop emits the stop cue.
func (n *Notifier) CueStop(context.Context) {
	n.playCue(cueStop)
}

// CueComplete emits the successful-handoff cue.
func (n *Notifier) CueComplete(context.Context) {
	n.playCue(cueComplete)
}

// Hide dismisses the active notification and waits for queued cues.
func (n *Notifier) Hide(ctx context.Context) {
	if n.cfg.Enable {
		n.run(ctx, n.dismiss)
	}

	done := make(chan struct{})
	go func() {
		n.cues.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (n *Notifier) show(ctx context.Context, timeoutMS int, text string) {
	n.showNotification(ctx, notification{summary: text, timeoutMS: timeoutMS})
}

func (n *Notifier) showNotification(ctx context.Context, note notification) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, note)
	})
}

// notify sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notify(ctx context.Context, note notification) error {
	n.mu.Lock()
	note.replaceID = n.notificationID
	n.mu.Unlock()

	note.appName = strings.TrimSpace(n.cfg.DesktopAppName)
	if note.appName == "" {
		note.appName = "shadow"
	}

	id, err := desktopNotify(ctx, note)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

// dismiss closes the current notification ID when present.
func (n *Notifier) dismiss(ctx context.Context) error {
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
		defer cancel()
		if err := emitCue(ctx, kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
