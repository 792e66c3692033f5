// Package anthropic implements the Anthropic Messages API adapter.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/transport"
	"github.com/upb/llm-chat-gateway/services/usage"
	"go.uber.org/zap"
)

const (
	messagesPath = "/v1/messages"
	modelsPath   = "/v1/models"

	// APIVersion is sent as the anthropic-version header
	APIVersion = "2023-06-01"

	// DefaultMaxTokens is used when a turn sets no limit; the API requires one.
	DefaultMaxTokens = 1024
)

// HeaderAllowlist are the caller-supplied headers forwarded to Anthropic.
var HeaderAllowlist = []string{"anthropic-beta"}

// Adapter implements providers.Provider for Anthropic.
//
// Responses are always read as one completed body: a streaming request still
// yields a single delta with the full text.
type Adapter struct {
	id     string
	deps   providers.Deps
	logger *zap.Logger
}

// New creates an adapter registered under id.
func New(id string, deps providers.Deps) *Adapter {
	return &Adapter{
		id:     id,
		deps:   deps,
		logger: deps.Log().With(zap.String("provider", id)),
	}
}

// ID returns the provider identifier
func (a *Adapter) ID() string {
	return a.id
}

// Chat performs a messages request
func (a *Adapter) Chat(ctx context.Context, cfg providers.ProviderConfig, params providers.ChatParams, cb providers.ChatCallbacks) (*providers.ChatResult, error) {
	endpoint, err := providers.Endpoint(cfg.BaseURL, messagesPath)
	if err != nil {
		return nil, err
	}
	key, err := providers.ResolveCredential(ctx, a.deps.Secrets, cfg, false)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildMessagesRequest(params))
	if err != nil {
		return nil, services.WrapInternal("failed to marshal request", err)
	}

	resp, err := a.deps.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: providers.BuildHeaders(cfg.Headers, HeaderAllowlist, a.authHeaders(key)),
		Body:    body,
	}, nil)
	if err != nil {
		return nil, err
	}

	result := &providers.ChatResult{Raw: resp.Data}
	var msg MessagesResponse
	if err := json.Unmarshal(resp.Data, &msg); err != nil {
		a.logger.Warn("response is not valid JSON, returning raw body",
			zap.String("model", params.Model),
			zap.Error(err),
		)
		cb.Done()
		return result, nil
	}

	result.Text = msg.text()
	result.Usage = usage.DecodeAnthropic(msg.Usage)
	if params.Stream {
		a.logger.Debug("streaming not supported, delivering full response as one delta",
			zap.String("model", params.Model),
		)
	}
	cb.Delta(result.Text)
	cb.Done()
	return result, nil
}

// ListModels returns the model identifiers served at {base}/v1/models
func (a *Adapter) ListModels(ctx context.Context, cfg providers.ProviderConfig) ([]string, error) {
	endpoint, err := providers.Endpoint(cfg.BaseURL, modelsPath)
	if err != nil {
		return nil, err
	}
	key, err := providers.ResolveCredential(ctx, a.deps.Secrets, cfg, false)
	if err != nil {
		return nil, err
	}

	resp, err := a.deps.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodGet,
		URL:     endpoint,
		Headers: providers.BuildHeaders(cfg.Headers, HeaderAllowlist, a.authHeaders(key)),
	}, nil)
	if err != nil {
		return nil, err
	}

	var list ModelList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, services.ErrMalformedResponse.Wrap(err).WithDetail("provider_id", a.id)
	}
	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

func (a *Adapter) authHeaders(key string) map[string]string {
	return map[string]string{
		"x-api-key":         key,
		"anthropic-version": APIVersion,
		"Content-Type":      "application/json",
	}
}

// buildMessagesRequest moves the system prompt and any system-role messages
// into the top-level system blocks.
func buildMessagesRequest(params providers.ChatParams) *MessagesRequest {
	req := &MessagesRequest{
		Model:       params.Model,
		Messages:    make([]Message, 0, len(params.Messages)),
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   DefaultMaxTokens,
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.System != "" {
		req.System = append(req.System, ContentBlock{Type: "text", Text: params.System})
	}
	for _, m := range params.Messages {
		if m.Role == providers.RoleSystem {
			if m.Content != "" {
				req.System = append(req.System, ContentBlock{Type: "text", Text: m.Content})
			}
			continue
		}
		req.Messages = append(req.Messages, Message{Role: string(m.Role), Content: m.Content})
	}
	return req
}

// Anthropic-specific request/response types

type MessagesRequest struct {
	Model       string         `json:"model"`
	System      []ContentBlock `json:"system,omitempty"`
	Messages    []Message      `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type MessagesResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []ContentBlock  `json:"content"`
	StopReason string          `json:"stop_reason"`
	Usage      json.RawMessage `json:"usage"`
}

func (m *MessagesResponse) text() string {
	var b strings.Builder
	for _, block := range m.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

type ModelList struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}
