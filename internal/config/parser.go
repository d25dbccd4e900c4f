package config

import (
	"path/filepath"
	"strings"
)

// Syntax names a supported config file syntax.
type Syntax string

const (
	SyntaxJSONC Syntax = "jsonc"
	SyntaxYAML  Syntax = "yaml"
)

// SyntaxFor picks the parser from the file extension. Anything that is not
// .yaml/.yml is read as JSONC.
func SyntaxFor(path string) Syntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SyntaxYAML
	default:
		return SyntaxJSONC
	}
}

// Parse reads JSONC configuration content over base.
func Parse(content string, base Config) (Config, []Warning, error) {
	return ParseSyntax(SyntaxJSONC, content, base)
}

// ParseSyntax reads configuration content in the given syntax over base.
func ParseSyntax(syntax Syntax, content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	if syntax == SyntaxYAML {
		return parseYAML(content, base)
	}
	return parseJSONC(content, base)
}
