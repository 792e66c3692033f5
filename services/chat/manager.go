package chat

import (
	"context"
	"time"

	"github.com/upb/llm-chat-gateway/internal/observability"
	"github.com/upb/llm-chat-gateway/models"
	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/services/thinkstream"
	"github.com/upb/llm-chat-gateway/services/transport"
	"go.uber.org/zap"
)

// Manager runs chat turns against stored credentials. It owns the model-list
// cache shared across turns.
type Manager struct {
	registry *providers.Registry
	deps     providers.Deps
	cache    *ModelCache
	metrics  observability.Metrics
	logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithModelCache replaces the default model-list cache.
func WithModelCache(cache *ModelCache) Option {
	return func(m *Manager) {
		if cache != nil {
			m.cache = cache
		}
	}
}

// WithMetrics records request, latency and usage metrics per turn.
func WithMetrics(metrics observability.Metrics) Option {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewManager creates a new chat manager. deps are handed to every adapter the
// registry builds.
func NewManager(registry *providers.Registry, deps providers.Deps, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	m := &Manager{
		registry: registry,
		deps:     deps,
		cache:    NewModelCache(0, DefaultModelCacheTTL),
		metrics:  observability.NopMetrics{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the provider registry the manager resolves against.
func (m *Manager) Registry() *providers.Registry {
	return m.registry
}

// Cache returns the model-list cache.
func (m *Manager) Cache() *ModelCache {
	return m.cache
}

// SendTurn runs one turn. An already cancelled context fails before any
// secret lookup or network call.
func (m *Manager) SendTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, transport.Cancelled(err)
	}
	if req.Credential == nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "credential")
	}

	provider, cfg, err := m.resolve(req.Credential)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = m.chooseModel(ctx, req.Credential, provider, cfg)
	}

	m.logger.Debug("sending turn",
		zap.String("provider", provider.ID()),
		zap.String("model", model),
		zap.String("credential_id", req.Credential.CacheKey()),
		zap.String("base_url", secrets.MaskAllSecrets(cfg.BaseURL)),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", req.OnDelta != nil))

	params := providers.ChatParams{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Stream:      req.OnDelta != nil,
	}
	var cb providers.ChatCallbacks
	if req.OnDelta != nil {
		cb.OnDelta = func(text string) {
			// Nothing reaches the caller once the turn is cancelled.
			if ctx.Err() == nil {
				req.OnDelta(text)
			}
		}
	}

	labels := observability.RequestLabels{Provider: provider.ID(), Model: model}
	start := time.Now()
	res, err := provider.Chat(ctx, cfg, params, cb)
	elapsed := time.Since(start)

	if ctx.Err() != nil && !transport.IsCancelled(err) {
		err = transport.Cancelled(ctx.Err())
	}

	labels.Status = statusLabel(err)
	m.metrics.RecordRequest(ctx, labels)
	m.metrics.RecordLatency(ctx, elapsed, labels)

	if err != nil {
		m.logger.Warn("turn failed",
			zap.String("provider", provider.ID()),
			zap.String("model", model),
			zap.Duration("latency", elapsed),
			zap.String("error", secrets.MaskAllSecrets(err.Error())))
		return nil, err
	}

	m.metrics.RecordUsage(ctx, res.Usage, labels)
	if res.Usage != nil && !res.Usage.Consistent() {
		m.logger.Warn("provider reported inconsistent usage",
			zap.String("provider", provider.ID()),
			zap.String("model", model),
			zap.Any("usage", res.Usage))
	}

	content, reasoning := thinkstream.Split(res.Text)
	m.logger.Info("turn completed",
		zap.String("provider", provider.ID()),
		zap.String("model", model),
		zap.Duration("latency", elapsed),
		zap.Int("content_len", len(content)),
		zap.Int("reasoning_len", len(reasoning)))

	return &TurnResult{
		Provider:  provider.ID(),
		Model:     model,
		Text:      res.Text,
		Content:   content,
		Reasoning: reasoning,
		Usage:     res.Usage,
		Raw:       res.Raw,
	}, nil
}

// ListModels returns the models the credential's endpoint offers. A fresh
// cached list is served unless forceRefresh is set. Failures propagate and
// leave the cache untouched.
func (m *Manager) ListModels(ctx context.Context, cred *models.ProviderCredential, forceRefresh bool) ([]string, error) {
	if cred == nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "credential")
	}
	provider, cfg, err := m.resolve(cred)
	if err != nil {
		return nil, err
	}
	return m.listModels(ctx, cred, provider, cfg, forceRefresh)
}

// ChooseModel picks the model a turn without an override would use: the
// configured default, else the first listed model. It never fails; an empty
// string means no source produced a model.
func (m *Manager) ChooseModel(ctx context.Context, cred *models.ProviderCredential) string {
	if cred == nil {
		return ""
	}
	provider, cfg, err := m.resolve(cred)
	if err != nil {
		m.logger.Debug("choose model: resolve failed", zap.Error(err))
		return ""
	}
	return m.chooseModel(ctx, cred, provider, cfg)
}

// InvalidateModels drops the cached model list of a credential.
func (m *Manager) InvalidateModels(cred *models.ProviderCredential) {
	if cred != nil {
		m.cache.Invalidate(cred.CacheKey())
	}
}

// FallbackModels returns the static model list of the credential's provider.
func (m *Manager) FallbackModels(cred *models.ProviderCredential) []string {
	if cred == nil {
		return nil
	}
	return m.registry.FallbackModels(cred.ProviderID)
}

// Config returns the effective configuration for cred: its explicit fields
// merged over the registry defaults of its provider.
func (m *Manager) Config(cred *models.ProviderCredential) (providers.ProviderConfig, error) {
	entry, err := m.registry.Lookup(cred.ProviderID)
	if err != nil {
		return providers.ProviderConfig{}, err
	}
	return credentialConfig(cred).Merge(entry.Defaults), nil
}

func (m *Manager) resolve(cred *models.ProviderCredential) (providers.Provider, providers.ProviderConfig, error) {
	provider, entry, err := m.registry.Build(cred.ProviderID, m.deps)
	if err != nil {
		return nil, providers.ProviderConfig{}, err
	}
	return provider, credentialConfig(cred).Merge(entry.Defaults), nil
}

func (m *Manager) chooseModel(ctx context.Context, cred *models.ProviderCredential, provider providers.Provider, cfg providers.ProviderConfig) string {
	if cfg.DefaultModel != "" {
		return cfg.DefaultModel
	}
	list, err := m.listModels(ctx, cred, provider, cfg, false)
	if err != nil {
		m.logger.Debug("choose model: list models failed",
			zap.String("provider", provider.ID()),
			zap.String("error", secrets.MaskAllSecrets(err.Error())))
		return ""
	}
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

func (m *Manager) listModels(ctx context.Context, cred *models.ProviderCredential, provider providers.Provider, cfg providers.ProviderConfig, force bool) ([]string, error) {
	key := cred.CacheKey()
	if !force {
		if list, ok := m.cache.Get(key); ok {
			return list, nil
		}
	}

	list, err := provider.ListModels(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	m.cache.Set(key, list)

	m.logger.Debug("model list refreshed",
		zap.String("provider", provider.ID()),
		zap.String("credential_id", key),
		zap.Int("models", len(list)))
	return list, nil
}

func credentialConfig(cred *models.ProviderCredential) providers.ProviderConfig {
	cfg := providers.ProviderConfig{
		BaseURL:      cred.BaseURL,
		Headers:      cred.Headers,
		DefaultModel: cred.DefaultModel,
	}
	if cred.SecretRef != nil {
		ref := *cred.SecretRef
		cfg.SecretRef = &ref
	}
	return cfg
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case transport.IsCancelled(err):
		return "cancelled"
	default:
		return "error"
	}
}
