package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/internal/observability"
	"github.com/upb/llm-chat-gateway/services/providers/catalog"
	"go.uber.org/zap"
)

func TestHandleListProviders(t *testing.T) {
	h := NewProviderHandler(catalog.New(), nil, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleListProviders(w, httptest.NewRequest(http.MethodGet, "/providers", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data []struct {
			ID       string `json:"id"`
			Kind     string `json:"kind"`
			Defaults struct {
				BaseURL string `json:"baseUrl"`
			} `json:"defaults"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	byID := map[string]string{}
	for _, p := range response.Data {
		byID[p.ID] = p.Defaults.BaseURL
	}
	assert.Equal(t, "https://api.openai.com", byID["openai"])
	assert.Equal(t, "https://api.anthropic.com", byID["anthropic"])
	assert.Contains(t, byID, "custom")
}

func TestHandleUsage(t *testing.T) {
	metrics := observability.NewUsageMetrics()
	labels := observability.RequestLabels{Provider: "openai", Model: "gpt-4o-mini", Status: "ok"}
	metrics.RecordRequest(context.Background(), labels)
	metrics.RecordLatency(context.Background(), time.Second, labels)

	t.Run("with collector", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewProviderHandler(catalog.New(), metrics, zap.NewNop()).
			HandleUsage(w, httptest.NewRequest(http.MethodGet, "/metrics/usage", nil))

		var response struct {
			Data []observability.UsageSnapshot `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, int64(1), response.Data[0].Requests)
	})

	t.Run("without collector", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewProviderHandler(catalog.New(), nil, zap.NewNop()).
			HandleUsage(w, httptest.NewRequest(http.MethodGet, "/metrics/usage", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
