// Command shadow-mp3enc serves the MP3 encoder module over go-plugin.
package main

import (
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/rbright/shadow/internal/codec"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "shadow-mp3enc",
		Output:     os.Stderr,
		Level:      hclog.Info,
		JSONFormat: true,
	})

	ffmpegPath := os.Getenv("SHADOW_FFMPEG")
	codec.ServePlugin(func() codec.Encoder {
		return codec.NewFFmpegEncoder(ffmpegPath)
	}, logger)
}
