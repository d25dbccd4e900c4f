// Package output applies practice result side effects (saved takes and clipboard).
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/rbright/shadow/internal/config"
)

// Committer copies transcript text to the clipboard when enabled.
type Committer struct {
	config config.Config
	logger *slog.Logger
}

// NewCommitter constructs a transcript committer from runtime config.
func NewCommitter(cfg config.Config, logger *slog.Logger) *Committer {
	return &Committer{config: cfg, logger: logger}
}

// Commit writes transcript text to the clipboard. It is a no-op when
// output.copy_transcript is off or the transcript is empty.
func (c *Committer) Commit(ctx context.Context, transcript string) error {
	if transcript == "" || !c.config.Output.CopyTranscript {
		return nil
	}

	clipboardCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := runCommandWithInput(clipboardCtx, c.config.Clipboard.Argv, transcript); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	if c.logger != nil {
		c.logger.Debug("transcript copied to clipboard", "chars", len(transcript))
	}
	return nil
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
