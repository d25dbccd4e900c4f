package output

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/shadow/internal/config"
	"github.com/stretchr/testify/require"
)

func TestRunCommandWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, "hello from shadow")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from shadow", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestCommitterCommitWritesClipboard(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.Output.CopyTranscript = true
	cfg.Clipboard = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	committer := NewCommitter(cfg, nil)
	err := committer.Commit(context.Background(), "captured transcript")
	require.NoError(t, err)

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "captured transcript", string(data))
}

func TestCommitterCommitSkipsEmptyTranscript(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.Output.CopyTranscript = true
	cfg.Clipboard = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	committer := NewCommitter(cfg, nil)
	err := committer.Commit(context.Background(), "")
	require.NoError(t, err)

	_, statErr := os.Stat(clipboardPath)
	require.Error(t, statErr)
	require.True(t, os.IsNotExist(statErr))
}

func TestCommitterCommitReturnsErrorWhenClipboardCommandFails(t *testing.T) {
	failScript := writeFailScript(t, "clipboard failed")

	cfg := config.Default()
	cfg.Output.CopyTranscript = true
	cfg.Clipboard = config.CommandConfig{Argv: []string{failScript}}

	committer := NewCommitter(cfg, nil)
	err := committer.Commit(context.Background(), "captured transcript")
	require.Error(t, err)
	require.Contains(t, err.Error(), "set clipboard")
}

func TestCommitterCommitSkipsWhenCopyDisabled(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	cfg := config.Default()
	cfg.Output.CopyTranscript = false
	cfg.Clipboard = config.CommandConfig{Argv: []string{scriptPath, clipboardPath}}

	committer := NewCommitter(cfg, nil)
	require.NoError(t, committer.Commit(context.Background(), "captured transcript"))

	_, statErr := os.Stat(clipboardPath)
	require.True(t, os.IsNotExist(statErr))
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
