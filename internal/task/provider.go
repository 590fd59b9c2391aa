package task

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Input is the provider-neutral description of a task to create. The
// pipeline maps a classified email onto this and the provider maps it
// onto its own schema.
type Input struct {
	Title string
	Notes string
	// Due is optional. Providers that only support date precision may
	// drop the time of day.
	Due time.Time
}

// Created describes a task after the provider accepted it.
type Created struct {
	// ID is the provider's task id.
	ID string
	// Link points at the task in the provider's UI or API, when known.
	Link string
}

// Provider creates tasks in a tracker backend.
type Provider interface {
	// Name returns the provider id used in API requests ("google_tasks",
	// "todoist").
	Name() string
	// Create creates a task. Implementations should honor ctx
	// cancellation.
	Create(ctx context.Context, input Input) (*Created, error)
}

// UnknownProviderError is returned when a request names a provider that
// is not registered. It maps to HTTP 400.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q", e.Provider)
}

// Registry holds the configured task providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry from the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Register adds a provider, replacing any existing one with the same name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, &UnknownProviderError{Provider: name}
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
