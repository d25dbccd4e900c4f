package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notifyService = "org.freedesktop.Notifications"
	notifyPath    = "/org/freedesktop/Notifications"

	// urgencyCritical keeps error toasts above do-not-disturb filters.
	urgencyCritical = 2
)

// notification is one freedesktop Notify call.
type notification struct {
	appName   string
	replaceID uint32
	summary   string
	body      string
	critical  bool
	timeoutMS int
}

func (n notification) args() []string {
	args := []string{
		"Notify", "susssasa{sv}i",
		n.appName,
		strconv.FormatUint(uint64(n.replaceID), 10),
		"", // icon
		n.summary,
		n.body,
		"0", // no actions
	}
	if n.critical {
		args = append(args, "1", "urgency", "y", strconv.Itoa(urgencyCritical))
	} else {
		args = append(args, "0")
	}
	return append(args, strconv.Itoa(n.timeoutMS))
}

// desktopNotify sends or replaces a notification and returns the ID the
// server assigned to it.
func desktopNotify(ctx context.Context, n notification) (uint32, error) {
	out, err := busctl(ctx, n.args()...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify failed: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) != 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss failed: %w", err)
	}
	return nil
}

// busctl calls a method on the session notification service and returns the
// trimmed reply. Failures carry busctl's own output when it printed any.
func busctl(ctx context.Context, method ...string) (string, error) {
	args := append([]string{"--user", "call", notifyService, notifyPath, notifyService}, method...)
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
