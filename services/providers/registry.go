package providers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/upb/llm-chat-gateway/services"
)

var (
	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")

	// ErrInvalidEntry is returned for entries without an id, kind or constructor
	ErrInvalidEntry = errors.New("invalid registry entry")
)

// Kind is the closed set of adapter variants.
type Kind string

const (
	KindOpenAICompatible Kind = "openai_compatible"
	KindAnthropic        Kind = "anthropic"
	KindCustomJSON       Kind = "custom_json"
)

// Valid reports whether k is one of the known variants.
func (k Kind) Valid() bool {
	switch k {
	case KindOpenAICompatible, KindAnthropic, KindCustomJSON:
		return true
	}
	return false
}

// Constructor builds an adapter from its collaborators.
type Constructor func(deps Deps) Provider

// Entry is one catalog row.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// New builds the adapter
	New Constructor `json:"-"`

	// Defaults are merged under the credential's explicit fields
	Defaults ProviderConfig `json:"defaults"`

	// FallbackModels is the static list callers use when listing fails
	FallbackModels []string `json:"fallbackModels,omitempty"`
}

// Registry maps provider identifiers to adapter constructors and defaults.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry creates a registry holding entries. It panics on an invalid or
// duplicate entry, since catalogs are static.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[string]Entry)}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(fmt.Sprintf("providers: %v", err))
		}
	}
	return r
}

// Register adds an entry.
func (r *Registry) Register(e Entry) error {
	if e.ID == "" || e.New == nil || !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEntry, e.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyRegistered, e.ID)
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	r.entries[e.ID] = e
	r.order = append(r.order, e.ID)
	return nil
}

// Lookup returns the entry for id. A miss is a configuration error, never a
// silent default.
func (r *Registry) Lookup(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, services.ErrUnknownProvider.WithDetail("provider_id", id)
	}
	return e, nil
}

// Build looks up id and constructs its adapter.
func (r *Registry) Build(id string, deps Deps) (Provider, Entry, error) {
	e, err := r.Lookup(id)
	if err != nil {
		return nil, Entry{}, err
	}
	return e.New(deps), e, nil
}

// Entries returns all entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// IDs returns all provider identifiers in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// FallbackModels returns a copy of the static model list for id, or nil.
func (r *Registry) FallbackModels(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	return append([]string(nil), e.FallbackModels...)
}
