package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// TaskRecord is one entry in the task creation history.
type TaskRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Provider  string    `json:"provider"`
	TaskID    string    `json:"task_id,omitempty"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Due       time.Time `json:"due,omitzero"`
	Sender    string    `json:"sender,omitempty"`
	Link      string    `json:"link,omitempty"`
	Query     string    `json:"query,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRecord is one entry in the calendar event history.
type EventRecord struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	EventID   string    `json:"event_id,omitempty"`
	Summary   string    `json:"summary"`
	Location  string    `json:"location,omitempty"`
	Start     time.Time `json:"start,omitzero"`
	End       time.Time `json:"end,omitzero"`
	Sender    string    `json:"sender,omitempty"`
	Link      string    `json:"link,omitempty"`
	DryRun    bool      `json:"dry_run,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists the task and event history as two JSON files in
// the data directory. Listing returns newest-first.
type HistoryStore struct {
	mu         sync.Mutex
	tasksPath  string
	eventsPath string
	tasks      []TaskRecord
	events     []EventRecord
}

// NewHistoryStore creates a history store from the given file paths.
// Missing or corrupt files are treated as empty history.
func NewHistoryStore(tasksPath, eventsPath string) (*HistoryStore, error) {
	s := &HistoryStore{
		tasksPath:  tasksPath,
		eventsPath: eventsPath,
	}
	loadJSONList(tasksPath, &s.tasks)
	loadJSONList(eventsPath, &s.events)
	return s, nil
}

func loadJSONList[T any](path string, out *[]T) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return
	}
	*out = list
}

// AppendTasks adds task records and persists the history.
func (s *HistoryStore) AppendTasks(records ...TaskRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, records...)
	return writeJSONAtomic(s.tasksPath, s.tasks)
}

// AppendEvents adds event records and persists the history.
func (s *HistoryStore) AppendEvents(records ...EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, records...)
	return writeJSONAtomic(s.eventsPath, s.events)
}

// Tasks returns the task history, newest first.
func (s *HistoryStore) Tasks() []TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskRecord, len(s.tasks))
	copy(out, s.tasks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Events returns the event history, newest first.
func (s *HistoryStore) Events() []EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EventRecord, len(s.events))
	copy(out, s.events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// DeleteTask removes a task record by its history id or provider task id.
// ErrNotFound is returned when no record matches.
func (s *HistoryStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.tasks {
		if rec.ID == id || (rec.TaskID != "" && rec.TaskID == id) {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return writeJSONAtomic(s.tasksPath, s.tasks)
		}
	}
	return fmt.Errorf("task %s: %w", id, ErrNotFound)
}
