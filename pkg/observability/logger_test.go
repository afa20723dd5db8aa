package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/platinummonkey/rolodex/pkg/contextkeys"
)

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", FormatJSON, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged as json", func(t *testing.T) {
		buf.Reset()
		logger.WithField("component", "test").Info("info message")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
		assert.Equal(t, "test", entry["component"])
	})
}

func TestNewLogger_Defaults(t *testing.T) {
	logger := NewLogger("not-a-level", FormatText, nil)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	_, ok := logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, ok)

	logger = NewLogger("debug", "", nil)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	_, ok = logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, ok)
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("info", FormatJSON, &buf)

	t.Run("fallback when context has no logger", func(t *testing.T) {
		buf.Reset()
		LoggerFromContext(context.Background(), base).Info("hello")
		assert.Contains(t, buf.String(), "hello")
	})

	t.Run("request scoped logger and user", func(t *testing.T) {
		buf.Reset()
		ctx := WithLogger(context.Background(), base.WithField("request_id", "req-1"))
		ctx = contextkeys.WithUserID(ctx, "alice@example.com")

		LoggerFromContext(ctx, nil).Info("hello")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "req-1", entry["request_id"])
		assert.Equal(t, "alice@example.com", entry["user"])
	})
}

func TestWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger("info", FormatJSON, &buf)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	WithTraceContext(ctx, base).Info("traced")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.NotEmpty(t, entry["span_id"])

	buf.Reset()
	WithTraceContext(context.Background(), base).Info("untraced")
	assert.NotContains(t, buf.String(), "trace_id")
}
