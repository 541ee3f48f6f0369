package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	assert.NotNil(t, tp.Tracer(), "disabled tracing still hands out a tracer")

	_, span := tp.Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestInitTracingInstallsPropagator(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent", "queue envelopes need W3C trace context")
	assert.Contains(t, fields, "baggage")
}

func TestShutdownWithoutProvider(t *testing.T) {
	tp := &TracerProvider{}
	assert.NoError(t, tp.Shutdown(context.Background()))
}
