package tracing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-123")
	assert.Equal(t, "run-123", GetRunID(ctx))

	assert.Empty(t, GetRunID(context.Background()))
}

func TestGenerateRequestIDUnique(t *testing.T) {
	first := GenerateRequestID()
	second := GenerateRequestID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestDuration(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)
	ctx := WithStartTime(context.Background(), start)

	assert.GreaterOrEqual(t, Duration(ctx), 50*time.Millisecond)
	assert.Equal(t, time.Duration(0), Duration(context.Background()))
}
