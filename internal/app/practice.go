package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/capture"
	"github.com/rbright/shadow/internal/config"
	"github.com/rbright/shadow/internal/indicator"
	"github.com/rbright/shadow/internal/ipc"
	"github.com/rbright/shadow/internal/logging"
	"github.com/rbright/shadow/internal/output"
	"github.com/rbright/shadow/internal/practice"
	"github.com/rbright/shadow/internal/review"
)

type runOutcome struct {
	handoff practice.Handoff
	err     error
}

// commandPractice becomes the socket owner, records until finish, then
// reviews the take. The first interrupt finishes the run instead of
// discarding it.
func (r Runner) commandPractice(ctx context.Context, cfg config.Config, mode practice.Mode, logRuntime logging.Runtime, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: %v; use pause, resume, complete, or finish\n", err)
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	handles := artifact.NewHandleStore("")
	presenter := r.newPresenter(cfg, handles, logRuntime, logger)
	defer func() { _ = presenter.Close() }()

	provider := encoderProvider(cfg, logRuntime.PluginLogger)
	detector := newDetector(cfg, provider)
	sessionOpts := captureOptions(cfg, detector, handles, logRuntime, logger)

	controller := practice.NewController(practice.Options{
		Mode:        mode,
		Record:      cfg.Practice.Record,
		GracePeriod: millis(cfg.Practice.GracePeriodMS),
		NewSession: func() practice.Session {
			return capture.NewSession(sessionOpts)
		},
		Presenter: presenter,
		Indicator: indicator.NewNotifier(cfg.Indicator, logger),
		Logger:    logger,
	})

	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()

	runCh := make(chan runOutcome, 1)
	go func() {
		handoff, err := controller.Run(runCtx)
		runCh <- runOutcome{handoff: handoff, err: err}
	}()

	// Control commands queue on the socket until capture has started.
	startErr := controller.Start(runCtx)
	if startErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", startErr)
		_ = controller.Finish(runCtx)
	} else if cfg.Practice.Record {
		fmt.Fprintf(r.Stderr, "recording %s; run `%s finish` when done\n", mode, binaryName)
	} else {
		fmt.Fprintf(r.Stderr, "practicing %s without recording; run `%s finish` when done\n", mode, binaryName)
	}

	serverCtx, serverCancel := context.WithCancel(runCtx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("interrupt received; finishing practice")
			if err := controller.Finish(runCtx); err != nil && !errors.Is(err, practice.ErrStopped) {
				cancelRun()
			}
		case <-controller.Done():
		}
	}()

	outcome := <-runCh
	serverCancel()
	serverErr := <-serverErrCh

	logPracticeResult(logger, outcome)

	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if startErr != nil {
		return 1
	}
	if outcome.err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", outcome.err)
		return 1
	}
	if outcome.handoff.HasError {
		return 1
	}
	return 0
}

func (r Runner) newPresenter(cfg config.Config, handles *artifact.HandleStore, logRuntime logging.Runtime, logger *slog.Logger) *review.Presenter {
	opts := review.Options{
		Filename:  cfg.Transcribe.Filename,
		Store:     output.NewStore(config.ExpandUser(cfg.Output.Dir)),
		Clipboard: output.NewCommitter(cfg, logger),
		Handles:   handles,
		Out:       r.Stdout,
		Logger:    logger,
	}
	if cfg.Transcode.Enable {
		provider := encoderProvider(cfg, logRuntime.PluginLogger)
		opts.Transcoder = newPipeline(cfg, provider, newDetector(cfg, provider), logger)
	}
	if cfg.Transcribe.Enable {
		opts.Transcriber = newTranscriber(cfg, logger)
	}
	return review.New(opts)
}

func logPracticeResult(logger *slog.Logger, outcome runOutcome) {
	if logger == nil {
		return
	}
	h := outcome.handoff
	fields := []any{
		"mode", h.Mode,
		"session_id", h.SessionID,
		"elapsed", h.Elapsed,
		"has_error", h.HasError,
		"has_recording", h.Artifact != nil,
	}
	if h.Artifact != nil {
		fields = append(fields, "recording_type", h.Artifact.BaseType(), "recording_bytes", h.Artifact.Size())
	}

	if outcome.err != nil {
		logger.Error("practice failed", append(fields, "error", outcome.err.Error())...)
		return
	}
	logger.Info("practice complete", fields...)
}
