// Package file implements the domain store interfaces on plain JSON files,
// used when Redis is disabled. Writes go through a temp file and rename so
// a crash mid-write never leaves a torn document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/parivision/bridgebet/internal/domain"
)

// CheckpointStore implements domain.CheckpointStore on a single JSON file.
type CheckpointStore struct {
	path string
	mu   sync.Mutex
}

// NewCheckpointStore creates a CheckpointStore writing to path. Parent
// directories are created on the first Save.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Save persists the pending bet atomically.
func (s *CheckpointStore) Save(ctx context.Context, bet domain.PendingBet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(bet, "", "  ")
	if err != nil {
		return fmt.Errorf("file: marshal checkpoint: %w", err)
	}
	return writeAtomic(s.path, data)
}

// Load returns the stored pending bet, or domain.ErrNotFound when the file
// does not exist.
func (s *CheckpointStore) Load(ctx context.Context) (domain.PendingBet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.PendingBet{}, domain.ErrNotFound
		}
		return domain.PendingBet{}, fmt.Errorf("file: read checkpoint: %w", err)
	}

	var bet domain.PendingBet
	if err := json.Unmarshal(data, &bet); err != nil {
		return domain.PendingBet{}, fmt.Errorf("file: decode checkpoint: %w", err)
	}
	return bet, nil
}

// Delete removes the checkpoint file. A missing file is not an error.
func (s *CheckpointStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file: delete checkpoint: %w", err)
	}
	return nil
}

// writeAtomic writes data to path via a temp file in the same directory
// followed by a rename, creating parent directories as needed.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("file: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("file: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file: rename: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CheckpointStore = (*CheckpointStore)(nil)
