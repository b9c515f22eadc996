package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("interval", "2024-01-01_2024-02-01"))

	Logger(ctx).Info("fetched")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "fetched", entries[0].Message)
		assert.Equal(t, "2024-01-01_2024-02-01", entries[0].ContextMap()["interval"])
	}
}

func TestLoggerFallback(t *testing.T) {
	assert.NotNil(t, Logger(context.Background()))
	Logger(context.Background()).Info("dropped")
}
