package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheus.Registry
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	historyLengthGauge metric.Int64ObservableGauge
	verdictCountGauge  metric.Int64ObservableGauge
	statusCodeGauge    metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Private registry per exporter
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	meter := meterProvider.Meter(
		"webhook-receiver",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	oe.historyLengthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.history.length",
		metric.WithDescription("Number of webhooks currently held in the listener history"),
		metric.WithUnit("{webhooks}"),
		metric.WithInt64Callback(oe.observeHistoryLength),
	)
	if err != nil {
		return fmt.Errorf("creating history length gauge: %w", err)
	}

	oe.verdictCountGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.verdict.count",
		metric.WithDescription("Number of deliveries processed by signature verdict"),
		metric.WithUnit("{webhooks}"),
		metric.WithInt64Callback(oe.observeVerdictCounts),
	)
	if err != nil {
		return fmt.Errorf("creating verdict count gauge: %w", err)
	}

	oe.statusCodeGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.response.status",
		metric.WithDescription("HTTP status currently returned to senders"),
		metric.WithInt64Callback(oe.observeStatusCode),
	)
	if err != nil {
		return fmt.Errorf("creating status code gauge: %w", err)
	}

	return nil
}

// observeHistoryLength is a callback that reports the history length
func (oe *OTelExporter) observeHistoryLength(ctx context.Context, observer metric.Int64Observer) error {
	length, err := oe.collector.GetHistoryLength(ctx)
	if err != nil {
		return err
	}
	observer.Observe(length)
	return nil
}

// observeVerdictCounts is a callback that reports delivery counts by verdict
func (oe *OTelExporter) observeVerdictCounts(ctx context.Context, observer metric.Int64Observer) error {
	verdicts, err := oe.collector.GetVerdictCounts(ctx)
	if err != nil {
		return err
	}

	for verdict, count := range verdicts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("webhook.verdict", verdict),
		))
	}
	return nil
}

// observeStatusCode is a callback that reports the configured response status
func (oe *OTelExporter) observeStatusCode(ctx context.Context, observer metric.Int64Observer) error {
	status, err := oe.collector.GetStatusCode(ctx)
	if err != nil {
		return err
	}
	observer.Observe(status)
	return nil
}

// ServeHTTP returns a handler serving Prometheus-formatted metrics
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
