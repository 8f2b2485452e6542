package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/importcheck/pkg/observability"
)

func setupTestMeter(t *testing.T) (*observability.CheckMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := observability.NewCheckMetrics(mp.Meter("test"))
	require.NoError(t, err)

	return metrics, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumByStatus(t *testing.T, m *metricdata.Metrics) map[string]int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	out := make(map[string]int64)

	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		out[status.AsString()] += dp.Value
	}

	return out
}

func TestCheckMetrics_RecordStatement(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)
	ctx := context.Background()

	metrics.RecordStatement(ctx, observability.StatusOK, "", 10*time.Millisecond)
	metrics.RecordStatement(ctx, observability.StatusOK, "", 20*time.Millisecond)
	metrics.RecordStatement(ctx, observability.StatusError, "ModuleNotFoundError", time.Millisecond)

	rm := collectMetrics(t, reader)

	counts := sumByStatus(t, findMetric(rm, "importcheck.statements"))
	assert.Equal(t, int64(2), counts[observability.StatusOK])
	assert.Equal(t, int64(1), counts[observability.StatusError])

	duration := findMetric(rm, "importcheck.statement.duration")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}

	assert.Equal(t, uint64(3), total)
}

func TestCheckMetrics_ErrorTypeAttribute(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)

	metrics.RecordStatement(context.Background(), observability.StatusError, "SyntaxError", time.Millisecond)

	m := findMetric(collectMetrics(t, reader), "importcheck.statements")
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	errType, found := sum.DataPoints[0].Attributes.Value(attribute.Key("error_type"))
	require.True(t, found)
	assert.Equal(t, "SyntaxError", errType.AsString())
}

func TestCheckMetrics_RecordCommentAndRun(t *testing.T) {
	t.Parallel()

	metrics, reader := setupTestMeter(t)
	ctx := context.Background()

	metrics.RecordComment(ctx)
	metrics.RecordComment(ctx)
	metrics.RecordRun(ctx, "cli", observability.StatusOK, time.Second)

	rm := collectMetrics(t, reader)

	comments := findMetric(rm, "importcheck.comments")
	require.NotNil(t, comments)

	sum, ok := comments.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	assert.Equal(t, int64(1), sumByStatus(t, findMetric(rm, "importcheck.runs"))[observability.StatusOK])
	assert.NotNil(t, findMetric(rm, "importcheck.run.duration"))
}

func TestCheckMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *observability.CheckMetrics

	assert.NotPanics(t, func() {
		metrics.RecordStatement(context.Background(), observability.StatusOK, "", time.Millisecond)
		metrics.RecordComment(context.Background())
		metrics.RecordRun(context.Background(), "cli", observability.StatusError, time.Millisecond)
	})
}
