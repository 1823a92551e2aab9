// Package artifacts manages transient call audio: recordings received from
// the caller and synthesized replies awaiting playback. Every artifact lives
// on disk under a uuid-derived name for a bounded retention window, and can
// be pinned while a telephony instruction still references it so the reaper
// never races a pending playback.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind describes what an artifact holds.
type Kind string

const (
	KindIncomingRecording Kind = "incoming_recording"
	KindSynthesizedReply  Kind = "synthesized_reply"
)

// ContentType returns the immutable content type served for the kind.
func (k Kind) ContentType() string {
	switch k {
	case KindSynthesizedReply:
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

func (k Kind) extension() string {
	switch k {
	case KindSynthesizedReply:
		return ".mp3"
	default:
		return ".wav"
	}
}

// ErrNotFound is returned when an artifact is unknown or already reaped.
var ErrNotFound = errors.New("artifact not found")

// Artifact is the retention metadata for one stored audio file.
type Artifact struct {
	ID        string
	Kind      Kind
	Path      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type record struct {
	Artifact

	pins int
}

const defaultRetention = 15 * time.Minute

// Store is a file-backed artifact store with expiry and in-use tracking.
type Store struct {
	dir       string
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*record
}

type StoreOption func(*Store)

// WithRetention overrides the retention window applied to new artifacts.
func WithRetention(retention time.Duration) StoreOption {
	return func(s *Store) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "callvoice-audio")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	s := &Store{
		dir:       dir,
		retention: defaultRetention,
		now:       time.Now,
		entries:   map[string]*record{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Create persists audio bytes and returns the assigned artifact ID.
func (s *Store) Create(kind Kind, audio []byte) (string, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+kind.extension())

	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	createdAt := s.now()
	s.mu.Lock()
	s.entries[id] = &record{Artifact: Artifact{
		ID:        id,
		Kind:      kind,
		Path:      path,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(s.retention),
	}}
	s.mu.Unlock()

	return id, nil
}

// Register adopts an audio file that already exists on disk, e.g. a
// pre-recorded fallback utterance shipped with the deployment. Registered
// artifacts never expire and are never reaped.
func (s *Store) Register(kind Kind, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("failed to register artifact: %w", err)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.entries[id] = &record{
		Artifact: Artifact{ID: id, Kind: kind, Path: path, CreatedAt: s.now()},
		pins:     1,
	}
	s.mu.Unlock()

	return id, nil
}

// Retrieve returns the audio bytes for an artifact that has not been reaped.
func (s *Store) Retrieve(id string) ([]byte, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	audio, err := os.ReadFile(entry.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return audio, nil
}

// Info returns the retention metadata for an artifact.
func (s *Store) Info(id string) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return Artifact{}, ErrNotFound
	}
	return entry.Artifact, nil
}

// Pin marks an artifact as referenced by a pending telephony instruction,
// excluding it from reaping regardless of expiry.
func (s *Store) Pin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[id]; ok {
		entry.pins++
	}
}

// Unpin releases one in-use reference taken by Pin.
func (s *Store) Unpin(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[id]; ok && entry.pins > 0 {
		entry.pins--
	}
}

// Reap deletes expired, unpinned artifacts and returns how many it removed.
func (s *Store) Reap() int {
	now := s.now()

	s.mu.Lock()
	expired := []*record{}
	for id, entry := range s.entries {
		if entry.pins > 0 || entry.ExpiresAt.IsZero() || entry.ExpiresAt.After(now) {
			continue
		}
		expired = append(expired, entry)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, entry := range expired {
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove expired artifact", "artifact", entry.ID, "error", err)
		}
	}

	return len(expired)
}

// Close removes every stored artifact. Registered files are left in place.
func (s *Store) Close() error {
	s.mu.Lock()
	entries := s.entries
	s.entries = map[string]*record{}
	s.mu.Unlock()

	var errs error
	for _, entry := range entries {
		if entry.ExpiresAt.IsZero() {
			continue
		}
		if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = errors.Join(errs, fmt.Errorf("failed to remove artifact %s: %w", entry.ID, err))
		}
	}

	return errs
}
