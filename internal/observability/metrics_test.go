package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/services/usage"
)

func TestUsageMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewUsageMetrics()
	openai := RequestLabels{Provider: "openai", Model: "gpt-4o", Status: "ok"}
	anthropic := RequestLabels{Provider: "anthropic", Model: "claude", Status: "ok"}

	m.RecordRequest(ctx, openai)
	m.RecordLatency(ctx, 150*time.Millisecond, openai)
	m.RecordUsage(ctx, &usage.Usage{PromptTokens: usage.Int(10), CompletionTokens: usage.Int(5)}, openai)

	m.RecordRequest(ctx, RequestLabels{Provider: "openai", Model: "gpt-4o", Status: "error"})

	m.RecordRequest(ctx, anthropic)
	m.RecordUsage(ctx, nil, anthropic)

	snap := m.Snapshot()
	require.Len(t, snap, 2)

	assert.Equal(t, "anthropic", snap[0].Provider)
	assert.Equal(t, int64(1), snap[0].UnknownUsage)

	assert.Equal(t, "openai", snap[1].Provider)
	assert.Equal(t, int64(2), snap[1].Requests)
	assert.Equal(t, int64(1), snap[1].Errors)
	assert.Equal(t, int64(10), snap[1].PromptTokens)
	assert.Equal(t, int64(5), snap[1].CompletionTokens)
	assert.Equal(t, int64(0), snap[1].TotalTokens)
	assert.Equal(t, 150*time.Millisecond, snap[1].TotalLatency)
}
