package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/security"
)

func TestCatalog(t *testing.T) {
	reg := New()

	assert.Equal(t, []string{"openai", "openrouter", "groq", "deepseek", "mistral", "xai", "ollama", "lmstudio", "anthropic", "custom"}, reg.IDs())

	for _, e := range reg.Entries() {
		t.Run(e.ID, func(t *testing.T) {
			p, entry, err := reg.Build(e.ID, providers.Deps{})
			require.NoError(t, err)
			assert.Equal(t, e.ID, p.ID())
			assert.Equal(t, e.Kind, entry.Kind)

			if e.Defaults.BaseURL != "" {
				assert.NoError(t, security.AssertURLAllowed(e.Defaults.BaseURL))
			}
		})
	}
}

func TestCatalog_Kinds(t *testing.T) {
	reg := New()

	openai, err := reg.Lookup("groq")
	require.NoError(t, err)
	assert.Equal(t, providers.KindOpenAICompatible, openai.Kind)
	assert.Equal(t, "https://api.groq.com/openai", openai.Defaults.BaseURL)

	anthropic, err := reg.Lookup("anthropic")
	require.NoError(t, err)
	assert.Equal(t, providers.KindAnthropic, anthropic.Kind)
	assert.NotEmpty(t, reg.FallbackModels("anthropic"))

	custom, err := reg.Lookup("custom")
	require.NoError(t, err)
	assert.Equal(t, providers.KindCustomJSON, custom.Kind)
	assert.Empty(t, custom.Defaults.BaseURL)
	assert.Empty(t, reg.FallbackModels("custom"))

	_, err = reg.Lookup("gemini")
	assert.ErrorIs(t, err, services.ErrUnknownProvider)
}
