package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rbright/shadow/internal/artifact"
)

// Take is one finished practice run to persist.
type Take struct {
	SessionID  string
	Mode       string
	Recording  *artifact.Artifact
	Transcript string
	At         time.Time
}

// Saved lists the files written for a take. Empty fields were skipped.
type Saved struct {
	RecordingPath  string
	TranscriptPath string
}

// Store writes takes under a single directory.
type Store struct {
	dir string
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// NewStore roots saved takes at dir. A leading ~ is expanded by the caller.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the recording and transcript side by side, sharing a
// timestamped base name. Nothing is written for a take with neither.
func (s *Store) Save(take Take) (Saved, error) {
	if take.Recording == nil && strings.TrimSpace(take.Transcript) == "" {
		return Saved{}, nil
	}
	if strings.TrimSpace(s.dir) == "" {
		return Saved{}, errors.New("output dir is empty")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("create output dir: %w", err)
	}

	base := filepath.Join(s.dir, baseName(take))
	var saved Saved

	if take.Recording != nil {
		path := base + take.Recording.Extension()
		if err := writeFileAtomic(path, take.Recording.Bytes()); err != nil {
			return saved, fmt.Errorf("save recording: %w", err)
		}
		saved.RecordingPath = path
	}

	if text := strings.TrimSpace(take.Transcript); text != "" {
		path := base + ".txt"
		if err := writeFileAtomic(path, []byte(text+"\n")); err != nil {
			return saved, fmt.Errorf("save transcript: %w", err)
		}
		saved.TranscriptPath = path
	}

	return saved, nil
}

// CheckWritable creates and removes a probe file under the directory.
func (s *Store) CheckWritable() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	probe, err := os.CreateTemp(s.dir, ".shadow-probe-*")
	if err != nil {
		return fmt.Errorf("output dir not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func baseName(take Take) string {
	at := take.At
	if at.IsZero() {
		at = time.Now()
	}
	parts := []string{at.Format("20060102-150405")}
	if mode := sanitize(take.Mode); mode != "" {
		parts = append(parts, mode)
	}
	if id := sanitize(take.SessionID); id != "" {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, id)
	}
	return strings.Join(parts, "-")
}

func sanitize(raw string) string {
	return strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(raw), "_"), "_")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".shadow-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
