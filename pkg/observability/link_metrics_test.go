package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestLinkMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewLinkMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.FlowInitiated(ctx, "google")
	m.FlowInitiated(ctx, "google")
	m.FlowCompleted(ctx, "google", OutcomeLinked)
	m.Disconnected(ctx, "meta")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok, metric.Name)
			for _, dp := range sum.DataPoints {
				totals[metric.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(2), totals["adlink.flows.initiated"])
	assert.Equal(t, int64(1), totals["adlink.flows.completed"])
	assert.Equal(t, int64(1), totals["adlink.disconnects"])
}

func TestNilLinkMetricsIsNoop(t *testing.T) {
	var m *LinkMetrics
	assert.NotPanics(t, func() {
		m.FlowInitiated(context.Background(), "google")
		m.FlowCompleted(context.Background(), "google", OutcomeDenied)
		m.Disconnected(context.Background(), "google")
	})
}
