package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/internal/shared"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
		want   zapcore.Level
	}{
		{name: "json debug", level: "debug", format: "json", want: zapcore.DebugLevel},
		{name: "console warn", level: "WARN", format: "console", want: zapcore.WarnLevel},
		{name: "unknown level", level: "chatty", format: "json", want: zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestContextLogger_AttachesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewContextLogger(zap.New(core))

	ctx := shared.WithRequestID(context.Background(), "req-42")
	logger.Info(ctx, "turn started", zap.String("provider", "openai"))
	logger.Warn(context.Background(), "no request id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "openai", entries[0].ContextMap()["provider"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestNewContextLogger_NilBase(t *testing.T) {
	logger := NewContextLogger(nil)
	assert.NotPanics(t, func() {
		logger.Error(context.Background(), "dropped")
	})
	assert.NotNil(t, logger.Zap())
}
