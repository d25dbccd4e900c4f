// Package cli parses shadow command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandPractice   Command = "practice"
	CommandPause      Command = "pause"
	CommandResume     Command = "resume"
	CommandComplete   Command = "complete"
	CommandFinish     Command = "finish"
	CommandStatus     Command = "status"
	CommandTranscode  Command = "transcode"
	CommandTranscribe Command = "transcribe"
	CommandDevices    Command = "devices"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandPractice:   {},
	CommandPause:      {},
	CommandResume:     {},
	CommandComplete:   {},
	CommandFinish:     {},
	CommandStatus:     {},
	CommandTranscode:  {},
	CommandTranscribe: {},
	CommandDevices:    {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

// Forwarded reports whether the command is sent to the running practice owner.
func (c Command) Forwarded() bool {
	switch c {
	case CommandPause, CommandResume, CommandComplete, CommandFinish, CommandStatus:
		return true
	default:
		return false
	}
}

// TakesFile reports whether the command requires a FILE argument.
func (c Command) TakesFile() bool {
	return c == CommandTranscode || c == CommandTranscribe
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Mode       string
	File       string
	Debug      bool
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--mode":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--mode requires a value")
			}
			parsed.Mode = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if cmd.TakesFile() {
				i++
				if i >= len(args) || strings.TrimSpace(args[i]) == "" {
					return Parsed{}, fmt.Errorf("%s requires a FILE argument", arg)
				}
				parsed.File = args[i]
			}
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--mode MODE] <command> [FILE]

Commands:
  practice         Start a practice run and own it until finish
  pause            Pause the active recording
  resume           Resume a paused recording
  complete         Finish after the grace period
  finish           Stop now and review the take
  status           Print current state
  transcode FILE   Re-encode an audio file to MP3
  transcribe FILE  Transcribe an audio file
  devices          List available input devices
  doctor           Run configuration and environment checks
  version          Print version information
  help             Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/shadow/config.jsonc)
  --mode MODE     Practice mode: sight_translation or simultaneous
  --debug         Log at debug level
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
