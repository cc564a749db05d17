package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"mongodb-orm/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerInterface_Contract(t *testing.T) {
	var _ Logger = NewLogger()
	var _ Logger = NewLoggerWithConfig("info", "json")
	var _ Logger = NewZapLogger("debug", "json")
	var _ Logger = NopLogger{}
}

func TestLogrusLogger_WithContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("debug", "json", &buf)

	ctx := context.WithValue(context.Background(), contextkeys.ModelKey, "User")
	ctx = context.WithValue(ctx, contextkeys.OperationKey, "create")
	log.WithContext(ctx).WithFields(map[string]interface{}{"id": 7}).Info("Document created")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Document created", line["message"])
	assert.Equal(t, "User", line["model"])
	assert.Equal(t, "create", line["operation"])
	assert.EqualValues(t, 7, line["id"])
}

func TestLogrusLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", "text", &buf)
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestZapLogger_WithFieldsAndComponent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewZapLoggerFrom(zap.New(core))

	ctx := context.WithValue(context.Background(), contextkeys.RequestIDKey, "req-1")
	log.WithComponent("registry").WithContext(ctx).Info("Model registered")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Model registered", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "registry", fields["component"])
	assert.Equal(t, "req-1", fields["request_id"])
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, NopLogger{}, OrNop(nil))
	l := NewLoggerWithConfig("info", "text")
	assert.Same(t, l, OrNop(l))
}
