// Package doctor runs readiness diagnostics for config, credential, audio, encoder, and output.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/shadow/internal/audio"
	"github.com/rbright/shadow/internal/codec"
	"github.com/rbright/shadow/internal/config"
	"github.com/rbright/shadow/internal/output"
	"github.com/rbright/shadow/internal/transcribe"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	if cfg.Transcribe.Enable {
		checks = append(checks, checkCredential(cfg, config.Credential(cfg)))
	}
	if cfg.Practice.Record {
		checks = append(checks, checkAudioSelection(ctx, cfg))
	}
	if cfg.Transcode.Enable {
		checks = append(checks, checkEncoder(ctx, encoderProvider(cfg)))
	}
	if cfg.Output.CopyTranscript {
		checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard_cmd"))
	}
	if target := strings.TrimSpace(cfg.Doctor.GRPCHealth); target != "" {
		checks = append(checks, checkGRPCHealth(ctx, target))
	}
	checks = append(checks, checkOutputDir(cfg))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q (%s)", loaded.Path, loaded.Config.Environment)
	if !loaded.Exists {
		message = fmt.Sprintf("using defaults; %q not found (%s)", loaded.Path, loaded.Config.Environment)
	}
	if len(loaded.EnvFiles) > 0 {
		message += "; env files: " + strings.Join(loaded.EnvFiles, ", ")
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkCredential validates key shape only. The key itself is never printed.
func checkCredential(cfg config.Config, credential string) Check {
	name := "transcribe.credential"
	if transcribe.ValidCredential(credential) {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is set", cfg.Transcribe.CredentialEnv)}
	}
	if cfg.Development() {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is missing or invalid; development mode returns placeholder transcripts", cfg.Transcribe.CredentialEnv)}
	}
	return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s is missing or invalid", cfg.Transcribe.CredentialEnv)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func encoderProvider(cfg config.Config) codec.Provider {
	if cfg.Transcode.Encoder == config.EncoderPlugin {
		return &codec.PluginProvider{Command: cfg.Transcode.PluginCmd.Argv}
	}
	return codec.FFmpegProvider{Path: cfg.Transcode.FFmpegPath}
}

// checkEncoder runs the provider's cheap availability check without loading it.
func checkEncoder(ctx context.Context, provider codec.Provider) Check {
	name := "transcode.encoder"
	checker, ok := provider.(codec.Checker)
	if !ok {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s encoder configured", provider.Name())}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := checker.Check(probeCtx); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s: %v; recordings stay in their captured format", provider.Name(), err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s encoder available", provider.Name())}
}

func checkOutputDir(cfg config.Config) Check {
	dir := config.ExpandUser(cfg.Output.Dir)
	if err := output.NewStore(dir).CheckWritable(); err != nil {
		return Check{Name: "output.dir", Pass: false, Message: err.Error()}
	}
	return Check{Name: "output.dir", Pass: true, Message: fmt.Sprintf("%s is writable", dir)}
}
