package poll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pollwatch/pollwatch/internal/domain"
)

// FileStore persists all polls in a single JSON file keyed by poll ID.
// Writes go to a temp file in the same directory followed by a rename, so
// a crash mid-write leaves the previously committed state intact.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(_ context.Context, p *domain.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	polls, err := s.readAll()
	if err != nil {
		return err
	}
	polls[p.ID] = p.Clone()
	return s.writeAll(polls)
}

func (s *FileStore) Load(_ context.Context, id string) (*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	polls, err := s.readAll()
	if err != nil {
		return nil, err
	}
	p, ok := polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p, nil
}

func (s *FileStore) LoadAll(_ context.Context) (map[string]*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *FileStore) readAll() (map[string]*domain.Poll, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]*domain.Poll), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read poll file: %w", err)
	}

	polls := make(map[string]*domain.Poll)
	if len(data) == 0 {
		return polls, nil
	}
	if err := json.Unmarshal(data, &polls); err != nil {
		return nil, fmt.Errorf("decode poll file: %w", err)
	}
	return polls, nil
}

func (s *FileStore) writeAll(polls map[string]*domain.Poll) error {
	data, err := json.MarshalIndent(polls, "", "  ")
	if err != nil {
		return fmt.Errorf("encode poll file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".polls-*.json")
	if err != nil {
		return fmt.Errorf("create temp poll file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp poll file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp poll file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp poll file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit poll file: %w", err)
	}
	return nil
}
