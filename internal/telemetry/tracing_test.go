package telemetry

import (
	"context"
	"testing"

	"github.com/eventops/server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false}, "test", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_RejectsBadInput(t *testing.T) {
	_, err := InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "none", SampleRate: 1.5}, "test", "test")
	require.Error(t, err)

	_, err = InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin", SampleRate: 1}, "test", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter")

	_, err = InitTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1}, "test", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs an endpoint")
}

func TestInitTracing_NoneExporter(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{
		Enabled:     true,
		Exporter:    "none",
		ServiceName: "eventops-test",
		SampleRate:  0.5,
	}, "test", "test")
	require.NoError(t, err)

	_, span := otel.Tracer("eventops/test").Start(context.Background(), "op")
	span.End()

	require.NoError(t, shutdown(context.Background()))
}
