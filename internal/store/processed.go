package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ProcessedStore tracks which Gmail message IDs have already been turned
// into tasks, so repeat fetches are idempotent. State is a single JSON
// file mapping message id to the RFC3339 timestamp it was processed at.
//
// A legacy format (a plain JSON array of ids) is accepted on load and
// rewritten in the new format on the next save.
type ProcessedStore struct {
	mu   sync.Mutex
	path string
	ids  map[string]time.Time
}

// NewProcessedStore creates a store backed by the given file. A missing
// or unreadable file is treated as empty.
func NewProcessedStore(path string) (*ProcessedStore, error) {
	s := &ProcessedStore{
		path: path,
		ids:  make(map[string]time.Time),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ProcessedStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read processed store: %w", err)
	}

	var byID map[string]time.Time
	if err := json.Unmarshal(data, &byID); err == nil {
		s.ids = byID
		return nil
	}

	// Legacy format: plain array of message ids
	var legacy []string
	if err := json.Unmarshal(data, &legacy); err == nil {
		for _, id := range legacy {
			s.ids[id] = time.Time{}
		}
		return nil
	}

	// Corrupt file: start over rather than blocking the pipeline
	s.ids = make(map[string]time.Time)
	return nil
}

// IsProcessed reports whether a message id has been handled before.
func (s *ProcessedStore) IsProcessed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// MarkProcessed records message ids as handled and persists the store.
// Marking an already-processed id again is a no-op.
func (s *ProcessedStore) MarkProcessed(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	now := time.Now().UTC()
	for _, id := range ids {
		if _, ok := s.ids[id]; !ok {
			s.ids[id] = now
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save()
}

// Len returns the number of processed ids.
func (s *ProcessedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns all processed message ids, sorted.
func (s *ProcessedStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// save writes the store atomically. Callers must hold the mutex.
func (s *ProcessedStore) save() error {
	return writeJSONAtomic(s.path, s.ids)
}

// writeJSONAtomic marshals v and writes it via a temp file plus rename,
// so a crash mid-write never leaves a truncated store behind.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
