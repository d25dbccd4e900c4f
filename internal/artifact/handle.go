package artifact

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Handle is a playable reference to an artifact: a private temp file.
type Handle struct {
	Path       string
	ArtifactID string
}

// HandleStore keeps at most one live handle. Issuing a new one revokes the old.
type HandleStore struct {
	dir string

	mu      sync.Mutex
	current *Handle
}

// NewHandleStore writes handle files under dir (os.TempDir when empty).
func NewHandleStore(dir string) *HandleStore {
	return &HandleStore{dir: dir}
}

// Issue materializes a into a new handle and releases the previous one.
func (s *HandleStore) Issue(a *Artifact) (Handle, error) {
	if a == nil {
		return Handle{}, errors.New("issue handle: nil artifact")
	}

	file, err := os.CreateTemp(s.dir, "shadow-*"+a.Extension())
	if err != nil {
		return Handle{}, fmt.Errorf("create handle file: %w", err)
	}
	if _, err := file.Write(a.data); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return Handle{}, fmt.Errorf("write handle file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return Handle{}, fmt.Errorf("close handle file: %w", err)
	}

	next := &Handle{Path: file.Name(), ArtifactID: a.ID()}

	s.mu.Lock()
	previous := s.current
	s.current = next
	s.mu.Unlock()

	if previous != nil {
		_ = os.Remove(previous.Path)
	}
	return *next, nil
}

// Current returns the live handle, if any.
func (s *HandleStore) Current() (Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Handle{}, false
	}
	return *s.current, true
}

// Revoke releases the live handle. Safe to call repeatedly.
func (s *HandleStore) Revoke() error {
	s.mu.Lock()
	previous := s.current
	s.current = nil
	s.mu.Unlock()

	if previous == nil {
		return nil
	}
	if err := os.Remove(previous.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("revoke handle: %w", err)
	}
	return nil
}

// Release removes h if it is still the live handle; a superseded or already
// revoked handle is left alone.
func (s *HandleStore) Release(h Handle) error {
	s.mu.Lock()
	if s.current == nil || s.current.Path != h.Path {
		s.mu.Unlock()
		return nil
	}
	s.current = nil
	s.mu.Unlock()

	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release handle: %w", err)
	}
	return nil
}
