package indicator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rbright/shadow/internal/config"
	"github.com/stretchr/testify/require"
)

const notifyPrefix = "--user|call|org.freedesktop.Notifications|/org/freedesktop/Notifications|org.freedesktop.Notifications|"

func TestNotifierReplacesSingleNotificationAndDismisses(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	t.Setenv("LC_ALL", "en_US.UTF-8")
	installBusctlStub(t, `
printf '%s|' "$@" >> "${BUSCTL_ARGS_FILE}"
printf '\n' >> "${BUSCTL_ARGS_FILE}"
if [[ "${6:-}" == "Notify" ]]; then
  echo 'u 7'
fi
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.ErrorTimeoutMS = 1600

	notify := NewNotifier(cfg, nil)
	notify.ShowRecording(context.Background())
	notify.ShowPaused(context.Background())
	notify.ShowCompleting(context.Background())
	notify.ShowProcessing(context.Background())
	notify.ShowError(context.Background(), "")
	notify.Hide(context.Background())

	lines := readLines(t, argsFile)
	require.Len(t, lines, 6)
	require.Equal(t, notifyPrefix+"Notify|susssasa{sv}i|shadow|0||Recording…||0|0|300000|", lines[0])
	require.Equal(t, notifyPrefix+"Notify|susssasa{sv}i|shadow|7||Paused||0|0|300000|", lines[1])
	require.Equal(t, notifyPrefix+"Notify|susssasa{sv}i|shadow|7||Finishing take…||0|0|300000|", lines[2])
	require.Equal(t, notifyPrefix+"Notify|susssasa{sv}i|shadow|7||Transcribing…||0|0|300000|", lines[3])
	require.Equal(t, notifyPrefix+"Notify|susssasa{sv}i|shadow|7||Practice error||0|1|urgency|y|2|1600|", lines[4])
	require.Equal(t, notifyPrefix+"CloseNotification|u|7|", lines[5])
}

func TestNotifierShowErrorUsesProvidedTextAndDefaultTimeout(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	t.Setenv("LC_ALL", "en_US.UTF-8")
	installBusctlStub(t, `
printf '%s|' "$@" >> "${BUSCTL_ARGS_FILE}"
printf '\n' >> "${BUSCTL_ARGS_FILE}"
echo 'u 3'
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false
	cfg.DesktopAppName = ""
	cfg.ErrorTimeoutMS = 0 // exercises fallback to 1200ms

	notify := NewNotifier(cfg, nil)
	notify.ShowError(context.Background(), "transcription failed")

	lines := readLines(t, argsFile)
	require.Equal(t, []string{notifyPrefix + "Notify|susssasa{sv}i|shadow|0||transcription failed||0|1|urgency|y|2|1200|"}, lines)
}

func TestNotifierDisabledSkipsBusctl(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$*" >> "${BUSCTL_ARGS_FILE}"
`)

	cfg := config.Default().Indicator
	cfg.Enable = false
	cfg.SoundEnable = false

	notify := NewNotifier(cfg, nil)
	notify.ShowRecording(context.Background())
	notify.ShowProcessing(context.Background())
	notify.ShowError(context.Background(), "ignored")
	notify.Hide(context.Background())

	_, err := os.Stat(argsFile)
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func TestNotifierFailedNotifySkipsDismiss(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "busctl-args.log")
	t.Setenv("BUSCTL_ARGS_FILE", argsFile)
	installBusctlStub(t, `
printf '%s\n' "$6" >> "${BUSCTL_ARGS_FILE}"
echo 'no notification daemon' >&2
exit 1
`)

	cfg := config.Default().Indicator
	cfg.SoundEnable = false

	notify := NewNotifier(cfg, nil)
	notify.ShowRecording(context.Background())
	notify.Hide(context.Background())

	require.Equal(t, []string{"Notify"}, readLines(t, argsFile))
}

func TestDesktopNotifyRejectsMalformedResponse(t *testing.T) {
	installBusctlStub(t, `
echo 'garbage'
`)

	_, err := desktopNotify(context.Background(), notification{appName: "shadow", summary: "hello", timeoutMS: 1000})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid response")
}

func TestDesktopNotifyIncludesStderrOnFailure(t *testing.T) {
	installBusctlStub(t, `
echo 'bus unavailable' >&2
exit 1
`)

	_, err := desktopNotify(context.Background(), notification{appName: "shadow", summary: "hello", timeoutMS: 1000})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bus unavailable")
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func installBusctlStub(t *testing.T, body string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "busctl")
	script := "#!/usr/bin/env bash\nset -euo pipefail\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}
