package practice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rbright/shadow/internal/artifact"
)

// Mode names the practice exercise being recorded.
type Mode string

const (
	ModeSightTranslation Mode = "sight_translation"
	ModeSimultaneous     Mode = "simultaneous"
	ModeUnknown          Mode = "unknown"
)

// ParseMode accepts the canonical names plus a few short aliases.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sight", "sight_translation", "sight-translation":
		return ModeSightTranslation, nil
	case "simultaneous", "simul", "simultaneous_interpretation", "simultaneous-interpretation":
		return ModeSimultaneous, nil
	default:
		return ModeUnknown, fmt.Errorf("unknown practice mode %q", raw)
	}
}

// Handoff is the payload passed to result presentation once practice ends.
// Ownership of Artifact transfers to the presenter.
type Handoff struct {
	Mode       Mode
	Artifact   *artifact.Artifact
	Transcript string
	Elapsed    string
	SessionID  string
	HasError   bool
}

// Minimal is the payload presented when the regular handoff cannot be.
func Minimal(mode Mode) Handoff {
	if mode == "" {
		mode = ModeUnknown
	}
	return Handoff{Mode: mode, Elapsed: "00:00", HasError: true}
}

// Presenter consumes the finished practice run.
type Presenter interface {
	Present(context.Context, Handoff) error
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(context.Context, Handoff) error

func (f PresenterFunc) Present(ctx context.Context, h Handoff) error {
	return f(ctx, h)
}
