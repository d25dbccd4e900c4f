package config

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseCommand splits a shell-like command line into argv. Single and double
// quotes group words, a backslash escapes the next rune, and a leading ~ in
// the program path is expanded. A blank or commented-out line yields an empty
// command.
func ParseCommand(raw string) (CommandConfig, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return CommandConfig{Raw: raw}, nil
	}

	argv, err := splitWords(trimmed)
	if err != nil {
		return CommandConfig{}, err
	}
	if len(argv) > 0 {
		argv[0] = ExpandUser(argv[0])
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

// MustParseCommand is ParseCommand for built-in defaults.
func MustParseCommand(raw string) CommandConfig {
	cmd, err := ParseCommand(raw)
	if err != nil {
		panic(err)
	}
	return cmd
}

func splitWords(line string) ([]string, error) {
	var (
		words   []string
		word    strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		if escaped {
			word.WriteRune(r)
			escaped, inWord = false, true
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if quote != 0 {
			if r == quote {
				quote = 0
			} else {
				word.WriteRune(r)
			}
			continue
		}
		switch {
		case r == '\'' || r == '"':
			quote, inWord = r, true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, word.String())
				word.Reset()
				inWord = false
			}
		default:
			word.WriteRune(r)
			inWord = true
		}
	}

	switch {
	case escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", line)
	case quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", line)
	}
	if inWord {
		words = append(words, word.String())
	}
	return words, nil
}
