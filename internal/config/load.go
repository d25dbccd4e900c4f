package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	EnvFiles []string
}

// Load resolves, reads, parses, and validates the runtime configuration.
// Dotenv files are loaded first so SHADOW_ENV and the credential may live there.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	envFiles, err := LoadDotEnv(dotEnvPaths(resolvedPath)...)
	if err != nil {
		return Loaded{}, fmt.Errorf("load dotenv: %w", err)
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			warnings := []Warning{{
				Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
			}}
			warnings = append(warnings, applyEnvironment(&base, os.Getenv)...)
			return Loaded{
				Path:     resolvedPath,
				Config:   base,
				Warnings: warnings,
				Exists:   false,
				EnvFiles: envFiles,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := ParseSyntax(SyntaxFor(resolvedPath), string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, applyEnvironment(&cfg, os.Getenv)...)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
		EnvFiles: envFiles,
	}, nil
}
