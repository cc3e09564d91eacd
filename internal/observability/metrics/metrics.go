package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	ordersScheduled    metric.Int64Counter
	distributorOrders  metric.Int64Counter
	distributorDebited metric.Int64Counter
	billsGenerated     metric.Int64Counter
	documentFailures   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dairy"
	}
	meter := provider.Meter(name)

	ordersScheduled, err := meter.Int64Counter("dairy_orders_scheduled_total")
	if err != nil {
		return nil, err
	}
	distributorOrders, err := meter.Int64Counter("dairy_distributor_orders_total")
	if err != nil {
		return nil, err
	}
	distributorDebited, err := meter.Int64Counter("dairy_distributor_debited_amount_total")
	if err != nil {
		return nil, err
	}
	billsGenerated, err := meter.Int64Counter("dairy_bills_generated_total")
	if err != nil {
		return nil, err
	}
	documentFailures, err := meter.Int64Counter("dairy_bill_document_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ordersScheduled:    ordersScheduled,
		distributorOrders:  distributorOrders,
		distributorDebited: distributorDebited,
		billsGenerated:     billsGenerated,
		documentFailures:   documentFailures,
	}, nil
}

// RecordOrdersScheduled counts orders materialized from recurring templates.
func (m *Metrics) RecordOrdersScheduled(ctx context.Context, source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("source", strings.TrimSpace(source)))
	m.ordersScheduled.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordDistributorOrders counts distributor order lines and the debited amount.
func (m *Metrics) RecordDistributorOrders(ctx context.Context, lines int, amount int64) {
	if m == nil || lines <= 0 {
		return
	}
	m.distributorOrders.Add(ctx, int64(lines))
	if amount > 0 {
		m.distributorDebited.Add(ctx, amount)
	}
}

// RecordBillGenerated counts persisted bills by role.
func (m *Metrics) RecordBillGenerated(ctx context.Context, role string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("role", strings.TrimSpace(role)))
	m.billsGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDocumentFailure counts bill documents that could not be produced or attached.
func (m *Metrics) RecordDocumentFailure(ctx context.Context, role, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("role", strings.TrimSpace(role)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.documentFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"job":    {},
	"role":   {},
	"source": {},
	"reason": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
