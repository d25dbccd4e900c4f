// Package logging configures runtime JSONL logging output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Runtime bundles the configured loggers and their shared file handle.
type Runtime struct {
	Logger *slog.Logger
	// PluginLogger routes encoder plugin host and child output into the same file.
	PluginLogger hclog.Logger
	Path         string
	closer       io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Options tunes the runtime loggers.
type Options struct {
	Debug bool
}

// New builds a JSONL logger rooted at the resolved state path.
func New(opts Options) (Runtime, error) {
	dir, err := StateDir()
	if err != nil {
		return Runtime{}, err
	}
	path := filepath.Join(dir, "log.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	level := slog.LevelInfo
	pluginLevel := hclog.Info
	if opts.Debug {
		level = slog.LevelDebug
		pluginLevel = hclog.Debug
	}

	sink := &lockedWriter{w: f}
	h := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})
	plugin := hclog.New(&hclog.LoggerOptions{
		Name:       "plugin",
		Level:      pluginLevel,
		Output:     sink,
		JSONFormat: true,
	})
	return Runtime{Logger: slog.New(h), PluginLogger: plugin, Path: path, closer: f}, nil
}

// Discard returns a Runtime that drops everything; used when the state dir is unusable.
func Discard() Runtime {
	return Runtime{
		Logger:       slog.New(slog.NewJSONHandler(io.Discard, nil)),
		PluginLogger: hclog.NewNullLogger(),
	}
}

// StateDir selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "shadow"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "shadow"), nil
}

// lockedWriter serializes whole-line writes from the two loggers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
