// Package metrics records routing activity through OpenTelemetry instruments
// and exposes them in Prometheus format.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterName identifies this service's instruments.
const MeterName = "approval-routing"

// Recorder holds the routing instruments. The zero value is not usable; a
// nil *Recorder records nothing.
type Recorder struct {
	simulations metric.Int64Counter
	stages      metric.Int64Counter
	warnings    metric.Int64Counter
	resolutions metric.Int64Counter
	saves       metric.Int64Counter
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	var r Recorder
	var err error

	if r.simulations, err = meter.Int64Counter("approvals.simulations",
		metric.WithDescription("Workflow simulations run")); err != nil {
		return nil, fmt.Errorf("failed to create simulations counter: %w", err)
	}
	if r.stages, err = meter.Int64Counter("approvals.stages",
		metric.WithDescription("Stages evaluated, by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create stages counter: %w", err)
	}
	if r.warnings, err = meter.Int64Counter("approvals.warnings",
		metric.WithDescription("Warnings produced by simulations")); err != nil {
		return nil, fmt.Errorf("failed to create warnings counter: %w", err)
	}
	if r.resolutions, err = meter.Int64Counter("approvals.delegation.resolutions",
		metric.WithDescription("Delegate lookups, by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create resolutions counter: %w", err)
	}
	if r.saves, err = meter.Int64Counter("approvals.saves",
		metric.WithDescription("Workflow and rule saves, by kind")); err != nil {
		return nil, fmt.Errorf("failed to create saves counter: %w", err)
	}
	return &r, nil
}

// Noop returns a recorder backed by a no-op meter.
func Noop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider().Meter(MeterName))
	return r
}

// RecordSimulation counts one simulation and its stage outcomes.
func (r *Recorder) RecordSimulation(ctx context.Context, entityType string, applied, skipped, warnings int) {
	if r == nil {
		return
	}
	entity := attribute.String("entity_type", entityType)
	r.simulations.Add(ctx, 1, metric.WithAttributes(entity))
	r.stages.Add(ctx, int64(applied), metric.WithAttributes(entity, attribute.String("outcome", "applied")))
	r.stages.Add(ctx, int64(skipped), metric.WithAttributes(entity, attribute.String("outcome", "skipped")))
	if warnings > 0 {
		r.warnings.Add(ctx, int64(warnings), metric.WithAttributes(entity))
	}
}

// RecordResolution counts one delegate lookup.
func (r *Recorder) RecordResolution(ctx context.Context, delegated bool) {
	if r == nil {
		return
	}
	outcome := "none"
	if delegated {
		outcome = "delegated"
	}
	r.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSave counts a saved workflow or rule.
func (r *Recorder) RecordSave(ctx context.Context, kind string) {
	if r == nil {
		return
	}
	r.saves.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Provider bundles the SDK meter provider with its scrape handler.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
	Registry      *prometheus.Registry
}

// NewPrometheusProvider wires an SDK meter provider to a fresh Prometheus registry.
func NewPrometheusProvider() (*Provider, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return &Provider{
		MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		Registry:      reg,
	}, nil
}

// Meter returns the service meter.
func (p *Provider) Meter() metric.Meter {
	return p.MeterProvider.Meter(MeterName)
}

// Handler serves the registry for scraping.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.MeterProvider.Shutdown(ctx)
}
