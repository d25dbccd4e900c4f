package doctor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/shadow/internal/codec"
	"github.com/rbright/shadow/internal/config"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-bin")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-bin", "--arg"}, "clipboard_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "clipboard_cmd command is available")
}

func TestCheckCredential(t *testing.T) {
	valid := "sk-" + "abcdefghijklmnopqrstuvwxyz"

	cases := []struct {
		name        string
		environment string
		credential  string
		pass        bool
		contains    string
	}{
		{name: "production valid", environment: config.EnvironmentProduction, credential: valid, pass: true, contains: "OPENAI_API_KEY is set"},
		{name: "production missing", environment: config.EnvironmentProduction, credential: "", pass: false, contains: "missing or invalid"},
		{name: "production dummy", environment: config.EnvironmentProduction, credential: "YOUR_DUMMY_API_KEY_HERE", pass: false, contains: "missing or invalid"},
		{name: "development missing", environment: config.EnvironmentDevelopment, credential: "", pass: true, contains: "placeholder transcripts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Environment = tc.environment

			check := checkCredential(cfg, tc.credential)
			require.Equal(t, tc.pass, check.Pass)
			require.Contains(t, check.Message, tc.contains)
			if tc.credential != "" {
				require.NotContains(t, check.Message, tc.credential)
			}
		})
	}
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestCheckEncoderMissingFFmpeg(t *testing.T) {
	check := checkEncoder(context.Background(), codec.FFmpegProvider{Path: "/definitely/missing/ffmpeg"})
	require.False(t, check.Pass)
	require.Equal(t, "transcode.encoder", check.Name)
	require.Contains(t, check.Message, "ffmpeg:")
}

func TestCheckEncoderPluginCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-encoder"), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkEncoder(context.Background(), &codec.PluginProvider{Command: []string{"fake-encoder"}})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "plugin encoder available")

	check = checkEncoder(context.Background(), &codec.PluginProvider{})
	require.False(t, check.Pass)
}

func TestEncoderProviderFollowsConfig(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "ffmpeg", encoderProvider(cfg).Name())

	cfg.Transcode.Encoder = config.EncoderPlugin
	cfg.Transcode.PluginCmd = config.CommandConfig{Argv: []string{"shadow-mp3enc"}}
	require.Equal(t, "plugin", encoderProvider(cfg).Name())
}

func TestCheckOutputDir(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(t.TempDir(), "takes")
	check := checkOutputDir(cfg)
	require.True(t, check.Pass)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.Output.Dir = filepath.Join(blocker, "takes")
	check = checkOutputDir(cfg)
	require.False(t, check.Pass)
}

func TestCheckGRPCHealthServing(t *testing.T) {
	target, healthServer := startHealthServer(t)

	check := checkGRPCHealth(context.Background(), target)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "is serving")

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	check = checkGRPCHealth(context.Background(), target)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "NOT_SERVING")
}

func TestCheckGRPCHealthUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	target := listener.Addr().String()
	require.NoError(t, listener.Close())

	check := checkGRPCHealth(context.Background(), target)
	require.False(t, check.Pass)
	require.Equal(t, "doctor.grpc_health", check.Name)
}

func TestRunSkipsDisabledChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Transcribe.Enable = false
	cfg.Practice.Record = false
	cfg.Transcode.Enable = false
	cfg.Output.CopyTranscript = false
	cfg.Output.Dir = t.TempDir()

	report := Run(context.Background(), config.Loaded{Path: "/tmp/shadow/config.jsonc", Config: cfg})
	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "output.dir"}, names)
	require.True(t, report.OK())
	require.Contains(t, report.Checks[0].Message, "using defaults")
}

func TestRunIncludesClipboardAndGRPCChecks(t *testing.T) {
	target, _ := startHealthServer(t)

	cfg := config.Default()
	cfg.Transcribe.Enable = false
	cfg.Practice.Record = false
	cfg.Transcode.Enable = false
	cfg.Output.CopyTranscript = true
	cfg.Clipboard = config.CommandConfig{Argv: []string{"sh"}}
	cfg.Doctor.GRPCHealth = target
	cfg.Output.Dir = t.TempDir()

	report := Run(context.Background(), config.Loaded{Path: "config.jsonc", Config: cfg, Exists: true, EnvFiles: []string{"/tmp/.env"}})
	require.True(t, report.OK(), report.String())
	require.Len(t, report.Checks, 4)
	require.Contains(t, report.Checks[0].Message, `loaded "config.jsonc"`)
	require.Contains(t, report.Checks[0].Message, "env files: /tmp/.env")
	require.Equal(t, "doctor.grpc_health", report.Checks[2].Name)
}

func startHealthServer(t *testing.T) (string, *health.Server) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	return listener.Addr().String(), healthServer
}
