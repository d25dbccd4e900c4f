package app

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rbright/shadow/internal/artifact"
	"github.com/rbright/shadow/internal/audio"
	"github.com/rbright/shadow/internal/capability"
	"github.com/rbright/shadow/internal/capture"
	"github.com/rbright/shadow/internal/codec"
	"github.com/rbright/shadow/internal/config"
	"github.com/rbright/shadow/internal/logging"
	"github.com/rbright/shadow/internal/transcode"
	"github.com/rbright/shadow/internal/transcribe"
)

const pluginFFmpegEnv = "SHADOW_FFMPEG"

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// encoderProvider selects the in-process ffmpeg encoder or the plugin binary.
func encoderProvider(cfg config.Config, pluginLogger hclog.Logger) codec.Provider {
	if cfg.Transcode.Encoder == config.EncoderPlugin {
		if strings.TrimSpace(os.Getenv(pluginFFmpegEnv)) == "" && cfg.Transcode.FFmpegPath != "" {
			_ = os.Setenv(pluginFFmpegEnv, cfg.Transcode.FFmpegPath)
		}
		return &codec.PluginProvider{
			Command:      cfg.Transcode.PluginCmd.Argv,
			Logger:       pluginLogger,
			StartTimeout: millis(cfg.Transcode.LoadTimeoutMS),
		}
	}
	return codec.FFmpegProvider{Path: cfg.Transcode.FFmpegPath}
}

func ffmpegAvailable(cfg config.Config) bool {
	path := strings.TrimSpace(cfg.Transcode.FFmpegPath)
	if path == "" {
		path = "ffmpeg"
	}
	_, err := exec.LookPath(path)
	return err == nil
}

// newDetector probes the host once, on first use.
func newDetector(cfg config.Config, provider codec.Provider) *capability.Detector {
	return capability.NewDetector(func(ctx context.Context) capability.Profile {
		_, deviceErr := audio.ListDevices(ctx)
		profile := capability.Profile{
			DeviceCapture:  deviceErr == nil,
			CaptureCodecs:  audio.PulseRecorders{}.SupportedCodecs(),
			DecodableTypes: transcode.DecodableTypes(ffmpegAvailable(cfg)),
		}
		if cfg.Transcode.Enable && provider != nil {
			profile.EncoderAvailable = codec.Available(ctx, provider)
		}
		return profile
	})
}

func newPipeline(cfg config.Config, provider codec.Provider, detector *capability.Detector, logger *slog.Logger) *transcode.Pipeline {
	opts := transcode.Options{
		Encoder:      provider,
		Capabilities: detector,
		Primary:      transcode.WAVDecoder{},
		Quality:      cfg.Transcode.Quality,
		ChunkFrames:  cfg.Transcode.ChunkFrames,
		LoadTimeout:  millis(cfg.Transcode.LoadTimeoutMS),
		Logger:       logger,
	}
	if ffmpegAvailable(cfg) {
		opts.Alternative = transcode.FFmpegDecoder{Path: cfg.Transcode.FFmpegPath, SampleRate: cfg.Audio.SampleRate}
	}
	return transcode.New(opts)
}

func newTranscriber(cfg config.Config, logger *slog.Logger) *transcribe.Client {
	return transcribe.New(transcribe.Options{
		Credential:       config.Credential(cfg),
		Development:      cfg.Development(),
		Endpoint:         cfg.Transcribe.Endpoint,
		Model:            cfg.Transcribe.Model,
		ResponseFormat:   cfg.Transcribe.ResponseFormat,
		Timeout:          millis(cfg.Transcribe.TimeoutMS),
		PlaceholderDelay: millis(cfg.Transcribe.PlaceholderDelayMS),
		Logger:           logger,
	})
}

func captureOptions(cfg config.Config, detector *capability.Detector, handles *artifact.HandleStore, logRuntime logging.Runtime, logger *slog.Logger) capture.Options {
	opts := capture.Options{
		Devices: &audio.PulseProvider{
			Input:                  cfg.Audio.Input,
			Fallback:               cfg.Audio.Fallback,
			NoiseSuppressionSource: cfg.Audio.NoiseSuppressionSource,
			SampleRate:             cfg.Audio.SampleRate,
			Logger:                 logger,
		},
		Recorders:       audio.PulseRecorders{},
		Capabilities:    detector,
		Handles:         handles,
		PreferredCodecs: cfg.Audio.PreferredCodecs,
		SampleRate:      cfg.Audio.SampleRate,
		ChunkInterval:   millis(cfg.Audio.ChunkMS),
		Logger:          logger,
	}
	if cfg.Debug.EnableAudioDump && logRuntime.Path != "" {
		opts.DebugDir = filepath.Join(filepath.Dir(logRuntime.Path), "debug")
	}
	return opts
}
