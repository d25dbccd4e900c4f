package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const fileName = "config.jsonc"

// ResolvePath applies CLI/XDG/home fallback rules for config.jsonc location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Dir is the per-user shadow config directory.
func Dir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "shadow"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", "shadow"), nil
}

// ExpandUser resolves a leading ~ against the user's home directory.
func ExpandUser(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	if raw == "~" {
		return home
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~/"))
}
