// Package state persists the last request so explain can revisit it.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/wx-briefing/internal/featurepack"
)

// FileName is the state file inside the state directory.
const FileName = "last_query.json"

// ErrNoState is returned by Load when nothing has been saved.
var ErrNoState = errors.New("no saved query")

// Payload is the minimal record needed to explain a previous answer.
type Payload struct {
	ID          uuid.UUID         `json:"id"`
	Command     string            `json:"command"`
	Question    string            `json:"question"`
	FeaturePack *featurepack.Pack `json:"feature_pack"`
	Style       string            `json:"style"`
	Persona     string            `json:"persona"`
	Timestamp   time.Time         `json:"timestamp"`
}

// FileStore keeps a single payload on disk. With privacy on, Save is a no-op.
type FileStore struct {
	dir     string
	privacy bool
}

// NewFileStore stores state under dir.
func NewFileStore(dir string, privacy bool) *FileStore {
	return &FileStore{dir: dir, privacy: privacy}
}

// DefaultDir is $XDG_CACHE_HOME/wx, falling back to the working directory.
func DefaultDir() string {
	if d, err := os.UserCacheDir(); err == nil {
		return filepath.Join(d, "wx")
	}
	return ".wx"
}

func (s *FileStore) path() string {
	return filepath.Join(s.dir, FileName)
}

// Privacy reports whether saving is disabled.
func (s *FileStore) Privacy() bool {
	return s.privacy
}

// Save writes p atomically: a temp file in the same directory renamed over
// the previous state. A zero ID is replaced with a fresh one.
func (s *FileStore) Save(p Payload) error {
	if s.privacy {
		return nil
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Load returns the saved payload, or ErrNoState.
func (s *FileStore) Load() (*Payload, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &p, nil
}
