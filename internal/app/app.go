// Package app wires parsed commands to the shadow runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/shadow/internal/audio"
	"github.com/rbright/shadow/internal/cli"
	"github.com/rbright/shadow/internal/config"
	"github.com/rbright/shadow/internal/doctor"
	"github.com/rbright/shadow/internal/ipc"
	"github.com/rbright/shadow/internal/logging"
	"github.com/rbright/shadow/internal/practice"
	"github.com/rbright/shadow/internal/version"
)

const (
	binaryName = "shadow"

	// forwardTimeout exceeds the owner's own enqueue timeout so its answer arrives.
	forwardTimeout = 6 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New(logging.Options{Debug: parsed.Debug})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"environment", cfgLoaded.Config.Environment,
		"env_files", cfgLoaded.EnvFiles,
		"log", logRuntime.Path,
	)

	if parsed.Command.Forwarded() {
		return r.forward(ctx, string(parsed.Command))
	}

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandTranscode:
		return r.commandTranscode(ctx, cfgLoaded.Config, parsed.File, logRuntime, logger)
	case cli.CommandTranscribe:
		return r.commandTranscribe(ctx, cfgLoaded.Config, parsed.File, logger)
	case cli.CommandPractice:
		raw := parsed.Mode
		if raw == "" {
			raw = cfgLoaded.Config.Practice.Mode
		}
		mode, err := practice.ParseMode(raw)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		return r.commandPractice(ctx, cfgLoaded.Config, mode, logRuntime, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// forward sends a control command to the practice owner. status reports idle
// when there is no owner; every other command fails.
func (r Runner) forward(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		if command == "status" {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Forward(ctx, socketPath, command, forwardTimeout)
	if errors.Is(err, ipc.ErrNoOwner) {
		if command == "status" {
			fmt.Fprintln(r.Stdout, "idle")
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if command == "status" {
		state := resp.State
		if state == "" {
			state = "idle"
		}
		if resp.Elapsed != "" {
			state += " " + resp.Elapsed
		}
		fmt.Fprintln(r.Stdout, state)
		return 0
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}
