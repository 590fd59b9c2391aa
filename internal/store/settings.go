package store

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/teemow/inboxtasks/internal/classify"
)

// ErrNotFound is returned when a record does not exist in a store.
var ErrNotFound = errors.New("not found")

// Settings are the persisted fetch defaults served by the settings API.
// Zero values mean "use the server default".
type Settings struct {
	Provider string `json:"provider,omitempty"`
	Max      int    `json:"max,omitempty"`
	Window   string `json:"window,omitempty"`
	DryRun   bool   `json:"dry_run"`

	// Category lists steer the classifier. Empty lists leave the
	// classifier with its built-in behavior.
	TaskCategories     []classify.Category `json:"task_categories,omitempty"`
	CalendarCategories []classify.Category `json:"calendar_categories,omitempty"`
}

// SettingsStore persists user settings as a JSON file.
type SettingsStore struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

// NewSettingsStore creates a settings store backed by the given file.
// A missing or corrupt file yields zero-value settings.
func NewSettingsStore(path string) (*SettingsStore, error) {
	s := &SettingsStore{path: path}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &s.settings)
	}
	return s, nil
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Put replaces the settings and persists them.
func (s *SettingsStore) Put(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return writeJSONAtomic(s.path, s.settings)
}
