package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// pointerFile names the file holding the id of the CLI's active session.
const pointerFile = "current"

// FileStore keeps one JSON file per session, mode 0600, in a single
// directory. It also tracks which session the CLI is logged in with.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

// NewFileStore opens (and creates) dir. An empty dir means
// ~/.config/rootline/sessions.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("session dir: %w", err)
		}
		dir = filepath.Join(home, ".config", "rootline", "sessions")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// file maps an id to its path. Path separators in the id are dropped so a
// crafted id cannot leave dir.
func (s *FileStore) file(id string) string {
	return filepath.Join(s.dir, filepath.Base(id)+".json")
}

// writeFile replaces name atomically.
func (s *FileStore) writeFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

// Get returns the session or nil. Expired files are removed on read.
func (s *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *FileStore) load(id string) (*Session, error) {
	path := s.file(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	sess := new(Session)
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if sess.IsExpired() {
		_ = os.Remove(path)
		return nil, nil
	}
	return sess, nil
}

func (s *FileStore) Set(ctx context.Context, sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeFile(s.file(sess.ID), data); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes a session. Deleting a missing session succeeds.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeIfExists(s.file(id))
}

// SetCurrent saves sess and points the CLI at it.
func (s *FileStore) SetCurrent(ctx context.Context, sess *Session) error {
	if err := s.Set(ctx, sess); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(filepath.Join(s.dir, pointerFile), []byte(sess.ID))
}

// Current returns the session the CLI is logged in with, or nil. A pointer
// to an expired or missing session reads as logged out.
func (s *FileStore) Current(ctx context.Context) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := os.ReadFile(filepath.Join(s.dir, pointerFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("current session: %w", err)
	}
	return s.load(strings.TrimSpace(string(id)))
}

// ClearCurrent logs the CLI out, removing the session and the pointer.
func (s *FileStore) ClearCurrent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pointer := filepath.Join(s.dir, pointerFile)
	id, err := os.ReadFile(pointer)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("current session: %w", err)
	}
	if err := removeIfExists(s.file(strings.TrimSpace(string(id)))); err != nil {
		return err
	}
	return removeIfExists(pointer)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

var _ Store = (*FileStore)(nil)
