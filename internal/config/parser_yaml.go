package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

func parseYAML(content string, base Config) (Config, []Warning, error) {
	decoder := yaml.NewDecoder(strings.NewReader(content))
	decoder.KnownFields(true)

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			validatedWarnings, vErr := Validate(base)
			if vErr != nil {
				return Config{}, nil, vErr
			}
			return base, validatedWarnings, nil
		}
		return Config{}, nil, fmt.Errorf("yaml: %w", err)
	}

	var extra yaml.Node
	if err := decoder.Decode(&extra); err == nil {
		return Config{}, nil, fmt.Errorf("multiple YAML documents are not allowed")
	} else if !errors.Is(err, io.EOF) {
		return Config{}, nil, fmt.Errorf("yaml: %w", err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}
