package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape shared by the JSONC and YAML syntaxes.
// Every field is optional and overlays the defaults.
type fileConfig struct {
	Environment *string         `json:"environment" yaml:"environment"`
	Audio       *fileAudio      `json:"audio" yaml:"audio"`
	Transcode   *fileTranscode  `json:"transcode" yaml:"transcode"`
	Transcribe  *fileTranscribe `json:"transcribe" yaml:"transcribe"`
	Practice    *filePractice   `json:"practice" yaml:"practice"`
	Indicator   *fileIndicator  `json:"indicator" yaml:"indicator"`
	Output      *fileOutput     `json:"output" yaml:"output"`

	ClipboardCmd *string     `json:"clipboard_cmd" yaml:"clipboard_cmd"`
	Doctor       *fileDoctor `json:"doctor" yaml:"doctor"`
	Debug        *fileDebug  `json:"debug" yaml:"debug"`
}

type fileAudio struct {
	Input                  *string     `json:"input" yaml:"input"`
	Fallback               *string     `json:"fallback" yaml:"fallback"`
	SampleRate             *int        `json:"sample_rate" yaml:"sample_rate"`
	ChunkMS                *int        `json:"chunk_ms" yaml:"chunk_ms"`
	NoiseSuppressionSource *string     `json:"noise_suppression_source" yaml:"noise_suppression_source"`
	PreferredCodecs        *stringList `json:"preferred_codecs" yaml:"preferred_codecs"`
}

type fileTranscode struct {
	Enable        *bool   `json:"enable" yaml:"enable"`
	Encoder       *string `json:"encoder" yaml:"encoder"`
	PluginCmd     *string `json:"plugin_cmd" yaml:"plugin_cmd"`
	FFmpegPath    *string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	Quality       *int    `json:"quality" yaml:"quality"`
	LoadTimeoutMS *int    `json:"load_timeout_ms" yaml:"load_timeout_ms"`
	ChunkFrames   *int    `json:"chunk_frames" yaml:"chunk_frames"`
}

type fileTranscribe struct {
	Enable             *bool   `json:"enable" yaml:"enable"`
	Endpoint           *string `json:"endpoint" yaml:"endpoint"`
	Model              *string `json:"model" yaml:"model"`
	ResponseFormat     *string `json:"response_format" yaml:"response_format"`
	TimeoutMS          *int    `json:"timeout_ms" yaml:"timeout_ms"`
	PlaceholderDelayMS *int    `json:"placeholder_delay_ms" yaml:"placeholder_delay_ms"`
	Filename           *string `json:"filename" yaml:"filename"`
	CredentialEnv      *string `json:"credential_env" yaml:"credential_env"`
}

type filePractice struct {
	Mode          *string `json:"mode" yaml:"mode"`
	Record        *bool   `json:"record" yaml:"record"`
	GracePeriodMS *int    `json:"grace_period_ms" yaml:"grace_period_ms"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable" yaml:"enable"`
	DesktopAppName *string `json:"desktop_app_name" yaml:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable" yaml:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms" yaml:"error_timeout_ms"`
}

type fileOutput struct {
	Dir            *string `json:"dir" yaml:"dir"`
	CopyTranscript *bool   `json:"copy_transcript" yaml:"copy_transcript"`
}

type fileDoctor struct {
	GRPCHealth *string `json:"grpc_health" yaml:"grpc_health"`
}

type fileDebug struct {
	AudioDump *bool `json:"audio_dump" yaml:"audio_dump"`
}

// stringList accepts either a list or a comma-delimited string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*l = list
		return nil
	case yaml.ScalarNode:
		*l = splitList(node.Value)
		return nil
	default:
		return fmt.Errorf("line %d: expected string list or comma-delimited string", node.Line)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (payload fileConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Environment != nil {
		cfg.Environment = strings.ToLower(strings.TrimSpace(*payload.Environment))
	}

	if a := payload.Audio; a != nil {
		if a.Input != nil {
			cfg.Audio.Input = *a.Input
		}
		if a.Fallback != nil {
			cfg.Audio.Fallback = *a.Fallback
		}
		if a.SampleRate != nil {
			cfg.Audio.SampleRate = *a.SampleRate
		}
		if a.ChunkMS != nil {
			cfg.Audio.ChunkMS = *a.ChunkMS
		}
		if a.NoiseSuppressionSource != nil {
			cfg.Audio.NoiseSuppressionSource = strings.TrimSpace(*a.NoiseSuppressionSource)
		}
		if a.PreferredCodecs != nil {
			cfg.Audio.PreferredCodecs = append([]string(nil), (*a.PreferredCodecs)...)
		}
	}

	if tc := payload.Transcode; tc != nil {
		if tc.Enable != nil {
			cfg.Transcode.Enable = *tc.Enable
		}
		if tc.Encoder != nil {
			cfg.Transcode.Encoder = strings.ToLower(strings.TrimSpace(*tc.Encoder))
		}
		if tc.PluginCmd != nil {
			cmd, err := ParseCommand(*tc.PluginCmd)
			if err != nil {
				return nil, fmt.Errorf("invalid transcode.plugin_cmd: %w", err)
			}
			cfg.Transcode.PluginCmd = cmd
		}
		if tc.FFmpegPath != nil {
			cfg.Transcode.FFmpegPath = strings.TrimSpace(*tc.FFmpegPath)
		}
		if tc.Quality != nil {
			cfg.Transcode.Quality = *tc.Quality
		}
		if tc.LoadTimeoutMS != nil {
			cfg.Transcode.LoadTimeoutMS = *tc.LoadTimeoutMS
		}
		if tc.ChunkFrames != nil {
			cfg.Transcode.ChunkFrames = *tc.ChunkFrames
		}
	}

	if tr := payload.Transcribe; tr != nil {
		if tr.Enable != nil {
			cfg.Transcribe.Enable = *tr.Enable
		}
		if tr.Endpoint != nil {
			cfg.Transcribe.Endpoint = strings.TrimSpace(*tr.Endpoint)
		}
		if tr.Model != nil {
			cfg.Transcribe.Model = strings.TrimSpace(*tr.Model)
		}
		if tr.ResponseFormat != nil {
			cfg.Transcribe.ResponseFormat = strings.TrimSpace(*tr.ResponseFormat)
		}
		if tr.TimeoutMS != nil {
			cfg.Transcribe.TimeoutMS = *tr.TimeoutMS
		}
		if tr.PlaceholderDelayMS != nil {
			cfg.Transcribe.PlaceholderDelayMS = *tr.PlaceholderDelayMS
		}
		if tr.Filename != nil {
			cfg.Transcribe.Filename = strings.TrimSpace(*tr.Filename)
		}
		if tr.CredentialEnv != nil {
			cfg.Transcribe.CredentialEnv = strings.TrimSpace(*tr.CredentialEnv)
		}
		if tr.ResponseFormat != nil && cfg.Transcribe.ResponseFormat != "json" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("transcribe.response_format=%q; only the json text field is read", cfg.Transcribe.ResponseFormat)})
		}
	}

	if p := payload.Practice; p != nil {
		if p.Mode != nil {
			cfg.Practice.Mode = strings.TrimSpace(*p.Mode)
		}
		if p.Record != nil {
			cfg.Practice.Record = *p.Record
		}
		if p.GracePeriodMS != nil {
			cfg.Practice.GracePeriodMS = *p.GracePeriodMS
		}
	}

	if ind := payload.Indicator; ind != nil {
		if ind.Enable != nil {
			cfg.Indicator.Enable = *ind.Enable
		}
		if ind.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*ind.DesktopAppName)
		}
		if ind.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *ind.SoundEnable
		}
		if ind.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *ind.ErrorTimeoutMS
		}
	}

	if out := payload.Output; out != nil {
		if out.Dir != nil {
			cfg.Output.Dir = strings.TrimSpace(*out.Dir)
		}
		if out.CopyTranscript != nil {
			cfg.Output.CopyTranscript = *out.CopyTranscript
		}
	}

	if payload.ClipboardCmd != nil {
		cmd, err := ParseCommand(*payload.ClipboardCmd)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = cmd
	}

	if payload.Doctor != nil && payload.Doctor.GRPCHealth != nil {
		cfg.Doctor.GRPCHealth = strings.TrimSpace(*payload.Doctor.GRPCHealth)
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}
