package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/buildmart/internal/config"
)

func testConfig(obs config.Observability) config.Config {
	obs.ServiceName = "buildmart"
	obs.Environment = "test"
	return config.Config{Observability: obs}
}

func TestPrometheusMetricsServeRegisteredInstruments(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, testConfig(config.Observability{
		EnableMetrics:   true,
		MetricsExporter: "prometheus",
		PrometheusPath:  "/metrics",
	}), zap.NewNop())
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	assert.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	assert.Equal(t, "/metrics", mgr.PrometheusPath())

	counter, err := otel.Meter("buildmart.test").Int64Counter("buildmart.test.hits")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_hits")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnsupportedExportersDisableSignals(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, testConfig(config.Observability{
		EnableTracing:   true,
		TraceExporter:   "zipkin",
		EnableMetrics:   true,
		MetricsExporter: "statsd",
	}), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
}

func TestOTLPRequiresEndpoint(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	_, err := NewManager(lc, testConfig(config.Observability{
		EnableTracing: true,
		TraceExporter: "otlp",
	}), zap.NewNop())
	assert.Error(t, err)
}
