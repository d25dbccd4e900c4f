package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeSpanish locale = "es"
)

// messages holds notification text for one locale.
type messages struct {
	recording  string
	paused     string
	completing string
	processing string
	errorText  string
}

var catalog = map[locale]messages{
	localeEnglish: {
		recording:  "Recording…",
		paused:     "Paused",
		completing: "Finishing take…",
		processing: "Transcribing…",
		errorText:  "Practice error",
	},
	localeSpanish: {
		recording:  "Grabando…",
		paused:     "En pausa",
		completing: "Terminando la toma…",
		processing: "Transcribiendo…",
		errorText:  "Error en la práctica",
	},
}

// indicatorMessagesFromEnv follows the usual LC_ALL, LC_MESSAGES, LANG order.
func indicatorMessagesFromEnv() messages {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
			return indicatorMessages(resolveLocale(raw))
		}
	}
	return indicatorMessages(localeEnglish)
}

// resolveLocale maps a POSIX locale such as es_MX.UTF-8 to a catalog entry.
func resolveLocale(raw string) locale {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(lang, "_.@-"); i >= 0 {
		lang = lang[:i]
	}
	if _, ok := catalog[locale(lang)]; ok {
		return locale(lang)
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	if msg, ok := catalog[tag]; ok {
		return msg
	}
	return catalog[localeEnglish]
}
