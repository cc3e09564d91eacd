package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("role", "customer"),
		attribute.String("customer_id", "456"),
		attribute.String("source", "recurring"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("role"), attrs[0].Key)
	assert.Equal(t, attribute.Key("source"), attrs[1].Key)
}

func TestDomainMetricsRecordToReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "dairy"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOrdersScheduled(ctx, "recurring", 31)
	m.RecordOrdersScheduled(ctx, "recurring", 0)
	m.RecordBillGenerated(ctx, "customer")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(31), totals["dairy_orders_scheduled_total"])
	assert.Equal(t, int64(1), totals["dairy_bills_generated_total"])
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordOrdersScheduled(context.Background(), "recurring", 3)
	m.RecordDistributorOrders(context.Background(), 2, 100)
	m.RecordDocumentFailure(context.Background(), "customer", "render")

	_, err := New(Config{}, noop.NewMeterProvider())
	assert.NoError(t, err)
}
