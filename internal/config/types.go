// Package config resolves, parses, validates, and defaults shadow configuration.
package config

// Config is the fully materialized runtime configuration used by shadow.
type Config struct {
	Environment string
	Audio       AudioConfig
	Transcode   TranscodeConfig
	Transcribe  TranscribeConfig
	Practice    PracticeConfig
	Indicator   IndicatorConfig
	Output      OutputConfig
	Clipboard   CommandConfig
	Doctor      DoctorConfig
	Debug       DebugConfig
}

// AudioConfig controls input-source selection and capture cadence.
type AudioConfig struct {
	Input                  string
	Fallback               string
	SampleRate             int
	ChunkMS                int
	NoiseSuppressionSource string
	PreferredCodecs        []string
}

// TranscodeConfig controls MP3 re-encoding of captured audio.
type TranscodeConfig struct {
	Enable        bool
	Encoder       string
	PluginCmd     CommandConfig
	FFmpegPath    string
	Quality       int
	LoadTimeoutMS int
	ChunkFrames   int
}

// TranscribeConfig controls the remote speech-to-text request.
type TranscribeConfig struct {
	Enable             bool
	Endpoint           string
	Model              string
	ResponseFormat     string
	TimeoutMS          int
	PlaceholderDelayMS int
	Filename           string
	CredentialEnv      string
}

// PracticeConfig controls the practice run defaults.
type PracticeConfig struct {
	Mode          string
	Record        bool
	GracePeriodMS int
}

// IndicatorConfig controls desktop notification and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// OutputConfig controls where finished recordings and transcripts land.
type OutputConfig struct {
	Dir            string
	CopyTranscript bool
}

// DoctorConfig controls optional diagnostics.
type DoctorConfig struct {
	GRPCHealth string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"

	EncoderFFmpeg = "ffmpeg"
	EncoderPlugin = "plugin"
)

// Development reports whether development-mode messaging applies.
func (c Config) Development() bool {
	return c.Environment == EnvironmentDevelopment
}
