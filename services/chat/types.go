package chat

import (
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/usage"
)

// TurnRequest is one conversational turn against a stored credential.
type TurnRequest struct {
	// Credential selects the provider and its configuration
	Credential *models.ProviderCredential

	// System prompt, optional
	System string

	// Model overrides the credential's default model
	Model string

	// Messages in conversation order
	Messages []providers.Message

	// Sampling parameters, nil means provider default
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// OnDelta receives streamed deltas. Setting it requests streaming.
	OnDelta func(text string)
}

// TurnResult is the settled outcome of a turn.
type TurnResult struct {
	// Provider and model used
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Text is the full answer as the provider returned it
	Text string `json:"text"`

	// Content and Reasoning split Text around <think> blocks
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`

	// Usage is nil when the provider reported none
	Usage *usage.Usage `json:"usage,omitempty"`

	Raw []byte `json:"-"`
}
