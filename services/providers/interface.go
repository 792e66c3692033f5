package providers

import (
	"context"

	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/services/transport"
	"github.com/upb/llm-chat-gateway/services/usage"
	"go.uber.org/zap"
)

// Provider is the capability every adapter variant implements.
type Provider interface {
	// ID returns the registry identifier the adapter was built for
	// (e.g., "openai", "groq", "anthropic", "custom").
	ID() string

	// ListModels fetches the model identifiers the endpoint offers. It does
	// not fall back to a static list; callers decide what to do on failure.
	ListModels(ctx context.Context, cfg ProviderConfig) ([]string, error)

	// Chat runs one completion. When params.Stream is set, deltas are
	// delivered through cb.OnDelta as they arrive. cb.OnDone is called once
	// on success.
	Chat(ctx context.Context, cfg ProviderConfig, params ChatParams, cb ChatCallbacks) (*ChatResult, error)
}

// Role of a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Order within a slice is conversation order.
type Message struct {
	Role    Role   `json:"role" yaml:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" yaml:"content"`
}

// ChatParams describes a single completion request.
type ChatParams struct {
	// Model identifier (e.g., "gpt-4o-mini", "claude-3-5-sonnet-latest")
	Model string

	// Messages in conversation order
	Messages []Message

	// Temperature controls randomness
	Temperature *float64

	// TopP controls nucleus sampling
	TopP *float64

	// MaxTokens limits the response length
	MaxTokens *int

	// System prompt, kept apart from Messages
	System string

	// Stream requests incremental delivery through ChatCallbacks.OnDelta
	Stream bool
}

// ProviderConfig is the per-turn configuration derived from a stored
// credential merged over registry defaults.
type ProviderConfig struct {
	// BaseURL of the vendor API. For custom providers it is the full endpoint.
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`

	// SecretRef locates the API key in the vault
	SecretRef *secrets.SecretRef `json:"secretRef,omitempty" yaml:"secretRef,omitempty"`

	// Headers requested by the caller; adapters keep only allow-listed ones
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// DefaultModel used when a turn names no model
	DefaultModel string `json:"defaultModel,omitempty" yaml:"defaultModel,omitempty"`
}

// Merge returns cfg with empty fields filled from defaults. The default base
// URL is only used when cfg has none.
func (cfg ProviderConfig) Merge(defaults ProviderConfig) ProviderConfig {
	out := cfg
	if out.BaseURL == "" {
		out.BaseURL = defaults.BaseURL
	}
	if out.SecretRef == nil && defaults.SecretRef != nil {
		ref := *defaults.SecretRef
		out.SecretRef = &ref
	}
	if out.DefaultModel == "" {
		out.DefaultModel = defaults.DefaultModel
	}
	if len(defaults.Headers) > 0 {
		headers := make(map[string]string, len(defaults.Headers)+len(cfg.Headers))
		for k, v := range defaults.Headers {
			headers[k] = v
		}
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		out.Headers = headers
	}
	return out
}

// ChatCallbacks are fire-and-forget hooks. Either may be nil.
type ChatCallbacks struct {
	OnDelta func(text string)
	OnDone  func()
}

// Delta forwards text to OnDelta, skipping empty deltas.
func (cb ChatCallbacks) Delta(text string) {
	if cb.OnDelta != nil && text != "" {
		cb.OnDelta(text)
	}
}

// Done calls OnDone if set.
func (cb ChatCallbacks) Done() {
	if cb.OnDone != nil {
		cb.OnDone()
	}
}

// ChatResult is the settled outcome of Chat.
type ChatResult struct {
	// Text is the full answer, including any inline reasoning markup
	Text string `json:"text"`

	// Usage is nil when the provider reported none
	Usage *usage.Usage `json:"usage,omitempty"`

	// Raw is the undecoded response body
	Raw []byte `json:"-"`
}

// Deps are the collaborators every adapter is built with.
type Deps struct {
	Transport transport.Transport
	Secrets   secrets.Resolver
	Logger    *zap.Logger
}

// Log returns the configured logger or a no-op logger.
func (d Deps) Log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
