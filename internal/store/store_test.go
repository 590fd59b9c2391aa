package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxtasks/internal/classify"
)

func TestProcessedStore_MarkAndCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	s, err := NewProcessedStore(path)
	require.NoError(t, err)

	assert.False(t, s.IsProcessed("msg1"))
	require.NoError(t, s.MarkProcessed("msg1", "msg2"))
	assert.True(t, s.IsProcessed("msg1"))
	assert.True(t, s.IsProcessed("msg2"))
	assert.Equal(t, 2, s.Len())
}

func TestProcessedStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	s, err := NewProcessedStore(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed("msg1"))

	reopened, err := NewProcessedStore(path)
	require.NoError(t, err)
	assert.True(t, reopened.IsProcessed("msg1"))
}

func TestProcessedStore_RemarkIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	s, err := NewProcessedStore(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed("msg1"))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// Reprocessing an already-handled id must not change the store
	require.NoError(t, s.MarkProcessed("msg1"))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 1, s.Len())
}

func TestProcessedStore_LegacyArrayFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	require.NoError(t, os.WriteFile(path, []byte(`["old1", "old2"]`), 0600))

	s, err := NewProcessedStore(path)
	require.NoError(t, err)
	assert.True(t, s.IsProcessed("old1"))
	assert.True(t, s.IsProcessed("old2"))

	// Next save rewrites in the map format
	require.NoError(t, s.MarkProcessed("new1"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var byID map[string]time.Time
	require.NoError(t, json.Unmarshal(data, &byID))
	assert.Len(t, byID, 3)
}

func TestProcessedStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0600))

	s, err := NewProcessedStore(path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestProcessedStore_IDsSorted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")

	s, err := NewProcessedStore(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed("zzz", "aaa", "mmm"))
	assert.Equal(t, []string{"aaa", "mmm", "zzz"}, s.IDs())
}

func TestHistoryStore_TasksNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := NewHistoryStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "events.json"))
	require.NoError(t, err)

	older := TaskRecord{ID: "a", MessageID: "m1", Title: "old", CreatedAt: time.Now().Add(-time.Hour)}
	newer := TaskRecord{ID: "b", MessageID: "m2", Title: "new", CreatedAt: time.Now()}
	require.NoError(t, s.AppendTasks(older, newer))

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "new", tasks[0].Title)
	assert.Equal(t, "old", tasks[1].Title)
}

func TestHistoryStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.json")
	eventsPath := filepath.Join(dir, "events.json")

	s, err := NewHistoryStore(tasksPath, eventsPath)
	require.NoError(t, err)
	require.NoError(t, s.AppendTasks(TaskRecord{ID: "t1", MessageID: "m1", Title: "task", CreatedAt: time.Now()}))
	require.NoError(t, s.AppendEvents(EventRecord{ID: "e1", MessageID: "m1", Summary: "event", CreatedAt: time.Now()}))

	reopened, err := NewHistoryStore(tasksPath, eventsPath)
	require.NoError(t, err)
	assert.Len(t, reopened.Tasks(), 1)
	assert.Len(t, reopened.Events(), 1)
}

func TestHistoryStore_DeleteTask(t *testing.T) {
	dir := t.TempDir()
	s, err := NewHistoryStore(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "events.json"))
	require.NoError(t, err)

	require.NoError(t, s.AppendTasks(
		TaskRecord{ID: "rec1", TaskID: "provider-1", Title: "one", CreatedAt: time.Now()},
		TaskRecord{ID: "rec2", Title: "two", CreatedAt: time.Now()},
	))

	// Delete by provider task id
	require.NoError(t, s.DeleteTask("provider-1"))
	assert.Len(t, s.Tasks(), 1)

	// Delete by history record id
	require.NoError(t, s.DeleteTask("rec2"))
	assert.Empty(t, s.Tasks())

	err = s.DeleteTask("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s, err := NewSettingsStore(path)
	require.NoError(t, err)
	assert.Equal(t, Settings{}, s.Get())

	want := Settings{
		Provider: "todoist",
		Max:      25,
		Window:   "7d",
		DryRun:   true,
		TaskCategories: []classify.Category{
			{Name: "Work", Description: "job related"},
			{Name: "Finance"},
		},
		CalendarCategories: []classify.Category{
			{Name: "Meetings"},
		},
	}
	require.NoError(t, s.Put(want))
	assert.Equal(t, want, s.Get())

	reopened, err := NewSettingsStore(path)
	require.NoError(t, err)
	assert.Equal(t, want, reopened.Get())
}

func TestSettingsStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	s, err := NewSettingsStore(path)
	require.NoError(t, err)
	assert.Equal(t, Settings{}, s.Get())
}
