// Package catalog holds the static provider catalog: every provider
// identifier the gateway knows, the adapter variant serving it, its default
// base URL and the static model list used when discovery fails.
package catalog

import (
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/providers/anthropic"
	"github.com/upb/llm-chat-gateway/services/providers/customjson"
	"github.com/upb/llm-chat-gateway/services/providers/openai"
)

func openAICompatible(id, name, baseURL string, fallback []string, opts ...openai.Option) providers.Entry {
	return providers.Entry{
		ID:   id,
		Name: name,
		Kind: providers.KindOpenAICompatible,
		New: func(deps providers.Deps) providers.Provider {
			return openai.New(id, deps, opts...)
		},
		Defaults:       providers.ProviderConfig{BaseURL: baseURL},
		FallbackModels: fallback,
	}
}

// Entries returns the catalog rows in display order.
func Entries() []providers.Entry {
	return []providers.Entry{
		openAICompatible("openai", "OpenAI", "https://api.openai.com",
			[]string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini", "o3-mini"}),
		openAICompatible("openrouter", "OpenRouter", "https://openrouter.ai/api",
			[]string{"openai/gpt-4o-mini", "anthropic/claude-3.5-sonnet", "deepseek/deepseek-r1"}),
		openAICompatible("groq", "Groq", "https://api.groq.com/openai",
			[]string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}),
		openAICompatible("deepseek", "DeepSeek", "https://api.deepseek.com",
			[]string{"deepseek-chat", "deepseek-reasoner"}),
		openAICompatible("mistral", "Mistral", "https://api.mistral.ai",
			[]string{"mistral-small-latest", "mistral-large-latest"}),
		openAICompatible("xai", "xAI", "https://api.x.ai",
			[]string{"grok-2-latest"}),
		openAICompatible("ollama", "Ollama", "http://localhost:11434",
			[]string{"llama3.2", "qwen2.5"}, openai.WithOptionalSecret()),
		openAICompatible("lmstudio", "LM Studio", "http://localhost:1234",
			[]string{"local-model"}, openai.WithOptionalSecret()),
		{
			ID:   "anthropic",
			Name: "Anthropic",
			Kind: providers.KindAnthropic,
			New: func(deps providers.Deps) providers.Provider {
				return anthropic.New("anthropic", deps)
			},
			Defaults: providers.ProviderConfig{BaseURL: "https://api.anthropic.com"},
			FallbackModels: []string{
				"claude-3-5-sonnet-latest",
				"claude-3-5-haiku-latest",
				"claude-3-opus-latest",
			},
		},
		{
			ID:   "custom",
			Name: "Custom JSON",
			Kind: providers.KindCustomJSON,
			New: func(deps providers.Deps) providers.Provider {
				return customjson.New("custom", deps)
			},
		},
	}
}

// New returns a registry populated with the catalog.
func New() *providers.Registry {
	return providers.NewRegistry(Entries()...)
}
