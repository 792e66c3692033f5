package handlers

import (
	"net/http"

	"github.com/upb/llm-chat-gateway/internal/observability"
	"github.com/upb/llm-chat-gateway/services/providers"
	"github.com/upb/llm-chat-gateway/utils"
	"go.uber.org/zap"
)

// UsageReporter exposes accumulated usage counters.
type UsageReporter interface {
	Snapshot() []observability.UsageSnapshot
}

// ProviderHandler serves the provider catalog and usage counters.
type ProviderHandler struct {
	registry *providers.Registry
	usage    UsageReporter
	logger   *zap.Logger
}

// NewProviderHandler creates a new ProviderHandler. usage may be nil.
func NewProviderHandler(registry *providers.Registry, usage UsageReporter, logger *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		registry: registry,
		usage:    usage,
		logger:   logger,
	}
}

// HandleListProviders handles GET /api/v1/providers
func (h *ProviderHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.registry.Entries())
}

// HandleUsage handles GET /api/v1/metrics/usage
func (h *ProviderHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	rows := []observability.UsageSnapshot{}
	if h.usage != nil {
		rows = h.usage.Snapshot()
	}
	_ = utils.WriteOK(w, rows)
}
