package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestID(ctx))
}

func TestSubject(t *testing.T) {
	ctx := WithSubject(context.Background(), "user-1")
	assert.Equal(t, "user-1", Subject(ctx))
	assert.Empty(t, Subject(context.Background()))
}
