package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teemow/inboxtasks/internal/classify"
	"github.com/teemow/inboxtasks/internal/store"
)

func TestClassifyOptionsFromSettings(t *testing.T) {
	opts := classifyOptions(store.Settings{
		TaskCategories: []classify.Category{
			{Name: "  Work ", Description: " job related "},
			{Name: ""},
		},
		CalendarCategories: []classify.Category{
			{Name: "Meetings"},
		},
	})

	assert.Equal(t, []classify.Category{{Name: "Work", Description: "job related"}}, opts.TaskCategories)
	assert.Equal(t, []classify.Category{{Name: "Meetings"}}, opts.CalendarCategories)
}

func TestClassifyOptionsEmptySettings(t *testing.T) {
	opts := classifyOptions(store.Settings{})
	assert.Empty(t, opts.TaskCategories)
	assert.Empty(t, opts.CalendarCategories)
}
