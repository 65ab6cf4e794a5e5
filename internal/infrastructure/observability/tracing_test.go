package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := initTracing(context.Background(), "foodcoop-test", true, &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "order.close")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "order.close"`)
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := initTracing(context.Background(), "foodcoop-test", false, nil)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "order.close")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}
