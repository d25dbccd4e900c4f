package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/shadow.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/shadow.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   string
		wantCmd   Command
		wantHelp  bool
		wantPath  string
		wantMode  string
		wantFile  string
		wantDebug bool
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "missing mode value",
			args:    []string{"--mode"},
			wantErr: "--mode requires a value",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "transcode without file",
			args:    []string{"transcode"},
			wantErr: "transcode requires a FILE argument",
		},
		{
			name:    "transcribe with two files",
			args:    []string{"transcribe", "a.wav", "b.wav"},
			wantErr: "unexpected arguments",
		},
		{
			name:     "practice with mode and config",
			args:     []string{"--config", "/tmp/cfg", "--mode", "simultaneous", "practice"},
			wantCmd:  CommandPractice,
			wantPath: "/tmp/cfg",
			wantMode: "simultaneous",
		},
		{
			name:    "complete command",
			args:    []string{"complete"},
			wantCmd: CommandComplete,
		},
		{
			name:     "transcode with file",
			args:     []string{"transcode", "take.wav"},
			wantCmd:  CommandTranscode,
			wantFile: "take.wav",
		},
		{
			name:      "transcribe with debug",
			args:      []string{"--debug", "transcribe", "take.mp3"},
			wantCmd:   CommandTranscribe,
			wantFile:  "take.mp3",
			wantDebug: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantMode, parsed.Mode)
			require.Equal(t, tc.wantFile, parsed.File)
			require.Equal(t, tc.wantDebug, parsed.Debug)
		})
	}
}

func TestCommandClassification(t *testing.T) {
	for _, cmd := range []Command{CommandPause, CommandResume, CommandComplete, CommandFinish, CommandStatus} {
		require.True(t, cmd.Forwarded(), cmd)
		require.False(t, cmd.TakesFile(), cmd)
	}
	for _, cmd := range []Command{CommandPractice, CommandTranscode, CommandTranscribe, CommandDevices, CommandDoctor} {
		require.False(t, cmd.Forwarded(), cmd)
	}
	require.True(t, CommandTranscode.TakesFile())
	require.True(t, CommandTranscribe.TakesFile())
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("shadow")
	for _, want := range []string{"practice", "pause", "resume", "complete", "finish", "transcode FILE", "transcribe FILE", "doctor", "--config PATH", "--mode MODE"} {
		require.Contains(t, text, want)
	}
}
