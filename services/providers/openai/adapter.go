package openai

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
	chatPath   = "/v1/chat/completions"
	modelsPath = "/v1/models"
)

// HeaderAllowlist are the caller-supplied headers forwarded to
// OpenAI-compatible endpoints.
var HeaderAllowlist = []string{"OpenAI-Organization", "OpenAI-Project", "HTTP-Referer", "X-Title"}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithOptionalSecret lets the adapter call endpoints without an API key,
// as local servers such as Ollama or LM Studio accept.
func WithOptionalSecret() Option {
	return func(a *Adapter) { a.secretOptional = true }
}

// Adapter implements providers.Provider for OpenAI and every API that speaks
// its chat-completions dialect.
type Adapter struct {
	id             string
	deps           providers.Deps
	logger         *zap.Logger
	secretOptional bool
}

// New creates an adapter registered under id.
func New(id string, deps providers.Deps, opts ...Option) *Adapter {
	a := &Adapter{
		id:     id,
		deps:   deps,
		logger: deps.Log().With(zap.String("provider", id)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the provider identifier
func (a *Adapter) ID() string {
	return a.id
}

// Chat performs a chat completion request
func (a *Adapter) Chat(ctx context.Context, cfg providers.ProviderConfig, params providers.ChatParams, cb providers.ChatCallbacks) (*providers.ChatResult, error) {
	endpoint, err := providers.Endpoint(cfg.BaseURL, chatPath)
	if err != nil {
		return nil, err
	}
	key, err := providers.ResolveCredential(ctx, a.deps.Secrets, cfg, a.secretOptional)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildChatRequest(params))
	if err != nil {
		return nil, services.WrapInternal("failed to marshal request", err)
	}

	owned := map[string]string{"Content-Type": "application/json"}
	if key != "" {
		owned["Authorization"] = "Bearer " + key
	}
	if params.Stream {
		owned["Accept"] = "text/event-stream"
	}

	scanner := newStreamScanner(cb.Delta)
	var onChunk transport.ChunkFunc
	if params.Stream {
		onChunk = scanner.Write
	}

	resp, err := a.deps.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodPost,
		URL:     endpoint,
		Headers: providers.BuildHeaders(cfg.Headers, HeaderAllowlist, owned),
		Body:    body,
		Stream:  params.Stream,
	}, onChunk)
	if err != nil {
		return nil, err
	}
	scanner.Close()

	result := &providers.ChatResult{Raw: resp.Data}
	switch {
	case scanner.Seen():
		result.Text = scanner.text.String()
		result.Usage = scanner.usage
	case isEventStream(resp):
		s := newStreamScanner(cb.Delta)
		s.Write(string(resp.Data))
		s.Close()
		result.Text = s.text.String()
		result.Usage = s.usage
		scanner = s
	default:
		var completion ChatCompletion
		if err := json.Unmarshal(resp.Data, &completion); err != nil {
			a.logger.Warn("response is not valid JSON, returning raw body",
				zap.String("model", params.Model),
				zap.Error(err),
			)
			break
		}
		if len(completion.Choices) > 0 {
			result.Text = completion.Choices[0].Message.Content
		}
		result.Usage = usage.DecodeOpenAI(completion.Usage)
		cb.Delta(result.Text)
	}

	a.logger.Debug("chat completed",
		zap.String("model", params.Model),
		zap.Bool("stream", params.Stream),
		zap.Int("frames", scanner.frames),
		zap.Int("skipped_frames", scanner.skipped),
	)
	cb.Done()
	return result, nil
}

// ListModels returns the model identifiers served at {base}/v1/models
func (a *Adapter) ListModels(ctx context.Context, cfg providers.ProviderConfig) ([]string, error) {
	endpoint, err := providers.Endpoint(cfg.BaseURL, modelsPath)
	if err != nil {
		return nil, err
	}
	key, err := providers.ResolveCredential(ctx, a.deps.Secrets, cfg, a.secretOptional)
	if err != nil {
		return nil, err
	}

	owned := map[string]string{}
	if key != "" {
		owned["Authorization"] = "Bearer " + key
	}
	resp, err := a.deps.Transport.Do(ctx, &transport.Request{
		Method:  http.MethodGet,
		URL:     endpoint,
		Headers: providers.BuildHeaders(cfg.Headers, HeaderAllowlist, owned),
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

// buildChatRequest converts params to the wire format, prepending the system
// prompt as a system-role message.
func buildChatRequest(params providers.ChatParams) *ChatRequest {
	req := &ChatRequest{
		Model:       params.Model,
		Messages:    make([]Message, 0, len(params.Messages)+1),
		Temperature: params.Temperature,
		TopP:        params.TopP,
		MaxTokens:   params.MaxTokens,
		Stream:      params.Stream,
	}
	if params.System != "" {
		req.Messages = append(req.Messages, Message{Role: string(providers.RoleSystem), Content: params.System})
	}
	for _, m := range params.Messages {
		req.Messages = append(req.Messages, Message{Role: string(m.Role), Content: m.Content})
	}
	return req
}

func isEventStream(resp *transport.Response) bool {
	if resp.Headers != nil && strings.Contains(resp.Headers.Get("Content-Type"), "text/event-stream") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(string(resp.Data)), dataPrefix)
}

// OpenAI-specific request/response types

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int     `json:"index"`
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage json.RawMessage `json:"usage"`
}

type ModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}
