package client

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docdash/internal/identity"

	"github.com/pelletier/go-toml/v2"
)

// SessionRecord is the persisted form of a session.
type SessionRecord struct {
	Token     string    `toml:"token"`
	UserID    string    `toml:"user_id"`
	Anonymous bool      `toml:"anonymous"`
	ExpiresAt time.Time `toml:"expires_at"`
}

func (r SessionRecord) Identity() identity.Identity {
	return identity.Identity{ID: r.UserID, Anonymous: r.Anonymous}
}

// SessionFile stores the current session in a TOML file. It is shared by
// every dashboard process of the same user.
type SessionFile struct {
	mu   sync.Mutex
	path string
}

// NewSessionFile uses path, or ~/.docdash/session.toml when path is empty.
func NewSessionFile(path string) (*SessionFile, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".docdash", "session.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return &SessionFile{path: path}, nil
}

func (f *SessionFile) Path() string { return f.path }

// Load returns the stored session. ok is false when there is none.
func (f *SessionFile) Load() (SessionRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SessionRecord{}, false, nil
		}
		return SessionRecord{}, false, err
	}

	var rec SessionRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return SessionRecord{}, false, err
	}
	return rec, rec.Token != "", nil
}

func (f *SessionFile) Save(rec SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := toml.Marshal(rec)
	if err != nil {
		return err
	}
	// Write then rename so watchers never see a half-written file.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *SessionFile) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
