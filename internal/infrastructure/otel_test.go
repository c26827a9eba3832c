package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"optpricer/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.EnableMetrics = true
	cfg.Telemetry.EnableTracing = true
	cfg.Telemetry.TraceExporter = "stdout"

	providers, err := InitializeOTel(OTelConfigFrom(cfg), discardLogger())
	require.NoError(t, err)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, span := providers.Tracer.Start(context.Background(), "fetch")
	assert.NotEmpty(t, TraceIDFromContext(ctx))
	RecordError(ctx, assert.AnError)
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.EnableMetrics = false
	cfg.Telemetry.EnableTracing = false

	providers, err := InitializeOTel(OTelConfigFrom(cfg), discardLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	// Noop instruments must still be usable
	metrics, err := NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordRows(context.Background(), "fetch", 3)

	ctx, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestUnsupportedTraceExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{EnableTracing: true, TraceExporter: "jaeger", SampleRatio: 1}, discardLogger())
	assert.Error(t, err)
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{ServiceName: ServiceName, EnableMetrics: true}, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordPricingRequest(context.Background(), "getPriceVanilla", true, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pricing_requests_total")
	assert.Contains(t, rec.Body.String(), `endpoint="getPriceVanilla"`)
}

func TestPipelineMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewPipelineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordPricingRequest(ctx, "getIVol", true, time.Millisecond)
	metrics.RecordPricingRequest(ctx, "getIVol", false, time.Millisecond)
	metrics.RecordRows(ctx, "normalize", 7)
	metrics.RecordStep(ctx, "fetch", StatusSuccess, time.Second)
	metrics.RecordRun(ctx, StatusSuccess)
	metrics.RecordDuplicateKeys(ctx, 2)
	metrics.RecordDuplicateKeys(ctx, 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	sums := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if data, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), sums["pricing_requests_total"])
	assert.Equal(t, int64(7), sums["pipeline_rows_total"])
	assert.Equal(t, int64(1), sums["pipeline_runs_total"])
	assert.Equal(t, int64(2), sums["pipeline_duplicate_join_keys_total"])
}

func TestNilPipelineMetrics(t *testing.T) {
	var metrics *PipelineMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordPricingRequest(ctx, "getIVol", true, time.Millisecond)
		metrics.RecordRows(ctx, "fetch", 1)
		metrics.RecordStep(ctx, "fetch", StatusFailure, time.Millisecond)
		metrics.RecordRun(ctx, StatusFailure)
		metrics.RecordDuplicateKeys(ctx, 1)
	})
}
