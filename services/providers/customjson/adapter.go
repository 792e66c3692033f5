// Package customjson implements the adapter for arbitrary JSON completion
// endpoints. The configured base URL is the full endpoint.
package customjson

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/transport"
	"github.com/upb/llm-chat-gateway/services/usage"
	"go.uber.org/zap"
)

// HeaderAllowlist are the caller-supplied headers forwarded to custom endpoints.
var HeaderAllowlist = []string{"X-Api-Key", "X-Request-Source"}

// Adapter implements providers.Provider for custom JSON endpoints.
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

// Chat posts a simplified completion body and reads the answer from the
// first of completion, text or message present in the response.
func (a *Adapter) Chat(ctx context.Context, cfg providers.ProviderConfig, params providers.ChatParams, cb providers.ChatCallbacks) (*providers.ChatResult, error) {
	endpoint, err := providers.Endpoint(cfg.BaseURL, "")
	if err != nil {
		return nil, err
	}
	key, err := providers.ResolveCredential(ctx, a.deps.Secrets, cfg, true)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(CompletionRequest{
		Model:       params.Model,
		System:      params.System,
		Prompt:      providers.Transcript(params.Messages),
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return nil, services.WrapInternal("failed to marshal request", err)
	}

	owned := map[string]string{"Content-Type": "application/json"}
	if key != "" {
		owned["Authorization"] = "Bearer " + key
	}
	resp, err := a.deps.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: providers.BuildHeaders(cfg.Headers, HeaderAllowlist, owned),
		Body:    body,
	}, nil)
	if err != nil {
		return nil, err
	}

	result := &providers.ChatResult{Raw: resp.Data}
	var out CompletionResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		a.logger.Warn("response is not valid JSON, returning raw body", zap.Error(err))
		cb.Done()
		return result, nil
	}
	result.Text = out.answer()
	result.Usage = usage.DecodeOpenAI(out.Usage)

	cb.Delta(result.Text)
	cb.Done()
	return result, nil
}

// ListModels makes no network call: custom endpoints have no discovery, so
// the configured default model is the only known model.
func (a *Adapter) ListModels(ctx context.Context, cfg providers.ProviderConfig) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.Cancelled(err)
	}
	if cfg.DefaultModel == "" {
		return []string{}, nil
	}
	return []string{cfg.DefaultModel}, nil
}

type CompletionRequest struct {
	Model       string   `json:"model"`
	System      string   `json:"system,omitempty"`
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

type CompletionResponse struct {
	Completion *string         `json:"completion"`
	Text       *string         `json:"text"`
	Message    json.RawMessage `json:"message"`
	Usage      json.RawMessage `json:"usage"`
}

func (r *CompletionResponse) answer() string {
	if r.Completion != nil {
		return *r.Completion
	}
	if r.Text != nil {
		return *r.Text
	}
	if len(r.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Message, &s); err == nil {
		return s
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(r.Message, &obj); err == nil {
		return obj.Content
	}
	return ""
}
