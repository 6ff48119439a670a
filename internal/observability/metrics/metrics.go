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
	incidentsCreated  metric.Int64Counter
	statusTransitions metric.Int64Counter
	numberConflicts   metric.Int64Counter
	breachesFlagged   metric.Int64Counter
	fallbackNumbers   metric.Int64Counter
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
		name = "incidentd"
	}
	meter := provider.Meter(name)

	incidentsCreated, err := meter.Int64Counter("incidentd_incidents_created_total")
	if err != nil {
		return nil, err
	}
	statusTransitions, err := meter.Int64Counter("incidentd_status_transitions_total")
	if err != nil {
		return nil, err
	}
	numberConflicts, err := meter.Int64Counter("incidentd_number_conflicts_total")
	if err != nil {
		return nil, err
	}
	breachesFlagged, err := meter.Int64Counter("incidentd_sla_breaches_flagged_total")
	if err != nil {
		return nil, err
	}
	fallbackNumbers, err := meter.Int64Counter("incidentd_fallback_numbers_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		incidentsCreated:  incidentsCreated,
		statusTransitions: statusTransitions,
		numberConflicts:   numberConflicts,
		breachesFlagged:   breachesFlagged,
		fallbackNumbers:   fallbackNumbers,
	}, nil
}

// RecordIncidentCreated increments creation counts by priority and severity.
func (m *Metrics) RecordIncidentCreated(ctx context.Context, priority, severity string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("priority", strings.TrimSpace(priority)),
		attribute.String("severity", strings.TrimSpace(severity)),
	)
	m.incidentsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStatusTransition increments transition counts by edge.
func (m *Metrics) RecordStatusTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from", strings.TrimSpace(from)),
		attribute.String("to", strings.TrimSpace(to)),
	)
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordNumberConflict increments sequence allocation retry counts.
func (m *Metrics) RecordNumberConflict(ctx context.Context) {
	if m == nil {
		return
	}
	m.numberConflicts.Add(ctx, 1)
}

// RecordBreachesFlagged adds the number of incidents flagged by a sweep.
func (m *Metrics) RecordBreachesFlagged(ctx context.Context, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.breachesFlagged.Add(ctx, count)
}

// RecordFallbackNumber increments storeless fallback numbering counts.
func (m *Metrics) RecordFallbackNumber(ctx context.Context) {
	if m == nil {
		return
	}
	m.fallbackNumbers.Add(ctx, 1)
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
	"priority":    {},
	"severity":    {},
	"from":        {},
	"to":          {},
	"status_code": {},
	"endpoint":    {},
	"reason":      {},
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
