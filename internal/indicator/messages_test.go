package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	tests := map[string]locale{
		"en_US.UTF-8": localeEnglish,
		"es_MX.UTF-8": localeSpanish,
		"es":          localeSpanish,
		"ES-es":       localeSpanish,
		"fr_FR.UTF-8": localeEnglish,
		"C":           localeEnglish,
		"":            localeEnglish,
	}
	for raw, want := range tests {
		require.Equal(t, want, resolveLocale(raw), raw)
	}
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msg := indicatorMessages(localeEnglish)
	require.Equal(t, "Recording…", msg.recording)
	require.Equal(t, "Paused", msg.paused)
	require.Equal(t, "Finishing take…", msg.completing)
	require.Equal(t, "Transcribing…", msg.processing)
	require.Equal(t, "Practice error", msg.errorText)
}

func TestIndicatorMessagesFromEnvPrefersLCAll(t *testing.T) {
	t.Setenv("LC_ALL", "es_ES.UTF-8")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "en_US.UTF-8")
	require.Equal(t, "Grabando…", indicatorMessagesFromEnv().recording)

	t.Setenv("LC_ALL", "")
	require.Equal(t, "Recording…", indicatorMessagesFromEnv().recording)
}

func TestUnknownLocaleFallsBackToEnglish(t *testing.T) {
	require.Equal(t, catalog[localeEnglish], indicatorMessages(locale("de")))
}
