package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvironmentVar overrides the configured environment when set.
const EnvironmentVar = "SHADOW_ENV"

// dotEnvPaths lists dotenv files next to the config file, then in the working directory.
func dotEnvPaths(configPath string) []string {
	paths := []string{filepath.Join(filepath.Dir(configPath), ".env")}
	if local, err := filepath.Abs(".env"); err == nil && local != paths[0] {
		paths = append(paths, local)
	}
	return paths
}

// LoadDotEnv loads each existing file into the process environment. Variables
// that are already set are never overridden, so earlier files win.
func LoadDotEnv(paths ...string) ([]string, error) {
	loaded := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// applyEnvironment lets SHADOW_ENV override the file's environment key.
func applyEnvironment(cfg *Config, getenv func(string) string) []Warning {
	raw := strings.ToLower(strings.TrimSpace(getenv(EnvironmentVar)))
	if raw == "" {
		return nil
	}
	switch raw {
	case EnvironmentDevelopment, "dev":
		cfg.Environment = EnvironmentDevelopment
	case EnvironmentProduction, "prod":
		cfg.Environment = EnvironmentProduction
	default:
		return []Warning{{Message: fmt.Sprintf("%s=%q is not development or production; keeping %s", EnvironmentVar, raw, cfg.Environment)}}
	}
	return nil
}

// Credential reads the transcription API key from the configured variable.
func Credential(cfg Config) string {
	name := strings.TrimSpace(cfg.Transcribe.CredentialEnv)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}
