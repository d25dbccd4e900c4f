package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Environment: EnvironmentProduction,
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
			ChunkMS:    100,
			PreferredCodecs: []string{
				"audio/webm;codecs=opus",
				"audio/ogg;codecs=opus",
				"audio/mp4",
				"audio/wav",
			},
		},
		Transcode: TranscodeConfig{
			Enable:        true,
			Encoder:       EncoderFFmpeg,
			FFmpegPath:    "ffmpeg",
			Quality:       2,
			LoadTimeoutMS: 10000,
			ChunkFrames:   1024,
		},
		Transcribe: TranscribeConfig{
			Enable:             true,
			Endpoint:           "https://api.openai.com/v1/audio/transcriptions",
			Model:              "whisper-1",
			ResponseFormat:     "json",
			TimeoutMS:          60000,
			PlaceholderDelayMS: 1500,
			Filename:           "recording.mp3",
			CredentialEnv:      "OPENAI_API_KEY",
		},
		Practice: PracticeConfig{
			Mode:          "sight_translation",
			Record:        true,
			GracePeriodMS: 4000,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "shadow",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Output:    OutputConfig{Dir: "~/Music/shadow"},
		Clipboard: MustParseCommand(clipboard),
		Debug:     DebugConfig{},
	}
}
