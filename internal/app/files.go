package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/config"
	"github.com/rbright/shadow/internal/logging"
	"github.com/rbright/shadow/internal/transcode"
)

// readArtifact loads a file and tags it with its sniffed audio type.
func readArtifact(path string) (*artifact.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("read %s: file is empty", path)
	}
	mime := transcode.DetectType(artifact.New(data, "", 0, 1))
	return artifact.New(data, mime, 0, 1), nil
}

// transcodedPath places the MP3 next to the input without overwriting it.
func transcodedPath(input string) string {
	stem := strings.TrimSuffix(input, filepath.Ext(input))
	out := stem + ".mp3"
	if out == input {
		out = stem + ".transcoded.mp3"
	}
	return out
}

func (r Runner) commandTranscode(ctx context.Context, cfg config.Config, path string, logRuntime logging.Runtime, logger *slog.Logger) int {
	input, err := readArtifact(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	provider := encoderProvider(cfg, logRuntime.PluginLogger)
	pipeline := newPipeline(cfg, provider, newDetector(cfg, provider), logger)

	job := pipeline.Start(ctx, input)
	for progress := range job.Subscribe() {
		fmt.Fprintf(r.Stderr, "\rtranscoding %3d%%", progress)
	}
	result, err := job.Wait(ctx)
	fmt.Fprintln(r.Stderr)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if !result.Succeeded() {
		detail := string(result.Reason)
		if result.Err != nil {
			detail += ": " + result.Err.Error()
		}
		fmt.Fprintf(r.Stderr, "error: transcode %s (%s)\n", result.Status, detail)
		return 1
	}

	out := transcodedPath(path)
	if err := os.WriteFile(out, result.Artifact.Bytes(), 0o644); err != nil {
		fmt.Fprintf(r.Stderr, "error: write %s: %v\n", out, err)
		return 1
	}
	fmt.Fprintln(r.Stdout, out)
	return 0
}

func (r Runner) commandTranscribe(ctx context.Context, cfg config.Config, path string, logger *slog.Logger) int {
	input, err := readArtifact(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	result := newTranscriber(cfg, logger).Transcribe(ctx, input, filepath.Base(path))
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", result.Err.Message)
	}
	if result.Text != "" {
		fmt.Fprintln(r.Stdout, strings.TrimSpace(result.Text))
	}
	if result.Valid || result.Placeholder {
		return 0
	}
	return 1
}
