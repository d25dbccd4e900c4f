package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Environment {
	case EnvironmentProduction, EnvironmentDevelopment:
	default:
		return nil, fmt.Errorf("environment must be one of: production, development")
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 192000 {
		return nil, fmt.Errorf("audio.sample_rate must be between 8000 and 192000")
	}
	if cfg.Audio.ChunkMS <= 0 {
		return nil, fmt.Errorf("audio.chunk_ms must be > 0")
	}
	if len(cfg.Audio.PreferredCodecs) == 0 {
		return nil, fmt.Errorf("audio.preferred_codecs must not be empty")
	}

	encoder := cfg.Transcode.Encoder
	if encoder != EncoderFFmpeg && encoder != EncoderPlugin {
		return nil, fmt.Errorf("transcode.encoder must be one of: ffmpeg, plugin")
	}
	if cfg.Transcode.Enable && encoder == EncoderPlugin && len(cfg.Transcode.PluginCmd.Argv) == 0 {
		return nil, fmt.Errorf("transcode.plugin_cmd must not be empty when transcode.encoder=plugin")
	}
	if cfg.Transcode.Quality < 0 || cfg.Transcode.Quality > 9 {
		return nil, fmt.Errorf("transcode.quality must be between 0 and 9")
	}
	if cfg.Transcode.LoadTimeoutMS <= 0 {
		return nil, fmt.Errorf("transcode.load_timeout_ms must be > 0")
	}
	if cfg.Transcode.ChunkFrames <= 0 {
		return nil, fmt.Errorf("transcode.chunk_frames must be > 0")
	}

	if cfg.Transcribe.Enable {
		endpoint, err := url.Parse(cfg.Transcribe.Endpoint)
		if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
			return nil, fmt.Errorf("transcribe.endpoint must be an absolute URL")
		}
		if endpoint.Scheme != "https" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("transcribe.endpoint uses %s; the credential is sent in clear text", endpoint.Scheme)})
		}
		if strings.TrimSpace(cfg.Transcribe.CredentialEnv) == "" {
			return nil, fmt.Errorf("transcribe.credential_env must not be empty")
		}
	}
	if cfg.Transcribe.TimeoutMS < 0 {
		return nil, fmt.Errorf("transcribe.timeout_ms must be >= 0")
	}
	if cfg.Transcribe.PlaceholderDelayMS < 0 {
		return nil, fmt.Errorf("transcribe.placeholder_delay_ms must be >= 0")
	}

	switch strings.ToLower(cfg.Practice.Mode) {
	case "sight", "sight_translation", "simultaneous":
	default:
		return nil, fmt.Errorf("practice.mode must be one of: sight_translation, simultaneous")
	}
	if cfg.Practice.GracePeriodMS <= 0 {
		return nil, fmt.Errorf("practice.grace_period_ms must be > 0")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		return nil, fmt.Errorf("output.dir must not be empty")
	}
	if cfg.Output.CopyTranscript && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty when output.copy_transcript=true")
	}

	if cfg.Audio.NoiseSuppressionSource == "" {
		warnings = append(warnings, Warning{Message: "audio.noise_suppression_source is unset; capture uses the minimal constraint set"})
	}

	return warnings, nil
}
