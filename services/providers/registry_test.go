package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/services"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	id     string
	models []string
	text   string
}

func NewMockProvider(id string) *MockProvider {
	return &MockProvider{
		id:     id,
		models: []string{"mock-model-1", "mock-model-2"},
		text:   "This is a mock response",
	}
}

func (m *MockProvider) ID() string {
	return m.id
}

func (m *MockProvider) ListModels(ctx context.Context, cfg ProviderConfig) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.models, nil
}

func (m *MockProvider) Chat(ctx context.Context, cfg ProviderConfig, params ChatParams, cb ChatCallbacks) (*ChatResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cb.Delta(m.text)
	cb.Done()
	return &ChatResult{Text: m.text}, nil
}

func mockEntry(id string) Entry {
	return Entry{
		ID:             id,
		Kind:           KindOpenAICompatible,
		New:            func(Deps) Provider { return NewMockProvider(id) },
		Defaults:       ProviderConfig{BaseURL: "https://" + id + ".example.com"},
		FallbackModels: []string{id + "-small"},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry(mockEntry("alpha"), mockEntry("beta"))

	e, err := reg.Lookup("beta")
	require.NoError(t, err)
	assert.Equal(t, "beta", e.ID)
	assert.Equal(t, "beta", e.Name)
	assert.Equal(t, []string{"alpha", "beta"}, reg.IDs())
	assert.Len(t, reg.Entries(), 2)

	p, entry, err := reg.Build("alpha", Deps{})
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.ID())
	assert.Equal(t, "https://alpha.example.com", entry.Defaults.BaseURL)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := NewRegistry(mockEntry("alpha"))

	_, err := reg.Lookup("nope")
	assert.True(t, errors.Is(err, services.ErrUnknownProvider))
	assert.True(t, services.IsConfigurationError(err))
	assert.Equal(t, "nope", services.GetErrorDetails(err)["provider_id"])

	_, _, err = reg.Build("nope", Deps{})
	assert.True(t, errors.Is(err, services.ErrUnknownProvider))
}

func TestRegistry_RegisterRejectsInvalidEntries(t *testing.T) {
	reg := NewRegistry()

	assert.ErrorIs(t, reg.Register(Entry{ID: "", Kind: KindAnthropic, New: mockEntry("x").New}), ErrInvalidEntry)
	assert.ErrorIs(t, reg.Register(Entry{ID: "x", Kind: "gemini", New: mockEntry("x").New}), ErrInvalidEntry)
	assert.ErrorIs(t, reg.Register(Entry{ID: "x", Kind: KindAnthropic}), ErrInvalidEntry)

	require.NoError(t, reg.Register(mockEntry("x")))
	assert.ErrorIs(t, reg.Register(mockEntry("x")), ErrProviderAlreadyRegistered)

	assert.Panics(t, func() { NewRegistry(mockEntry("dup"), mockEntry("dup")) })
}

func TestRegistry_FallbackModelsIsACopy(t *testing.T) {
	reg := NewRegistry(mockEntry("alpha"))

	models := reg.FallbackModels("alpha")
	models[0] = "mutated"

	assert.Equal(t, []string{"alpha-small"}, reg.FallbackModels("alpha"))
	assert.Nil(t, reg.FallbackModels("missing"))
}
