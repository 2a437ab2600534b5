// Package telemetry provides the optional, strictly observational metrics
// and tracing surface described in SPEC_FULL.md §4.14. Disabled by
// default; every Collector method is a safe no-op when disabled, and no
// pipeline decision ever depends on telemetry succeeding.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Config toggles the telemetry subsystem.
type Config struct {
	Enabled        bool
	PrometheusPort int
}

// Collector exposes the metrics named in §4.14. A disabled Collector
// returns no-op metric instruments.
type Collector struct {
	enabled bool

	runs       metric.Int64Counter
	duration   metric.Float64Histogram
	sleepHist  metric.Float64Histogram
	iterations metric.Int64Counter

	server *http.Server
	mu     sync.Mutex
}

// New builds a Collector from cfg. When cfg.Enabled is false, New never
// fails and returns a Collector whose Record* methods are no-ops.
func New(cfg Config) (*Collector, error) {
	c := &Collector{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return c, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new prometheus exporter: %w", err)
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", "ralph"),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	meter := provider.Meter("ralph")

	c.runs, err = meter.Int64Counter("ralph_pipeline_runs_total", metric.WithDescription("pipeline runs by exit code"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: runs counter: %w", err)
	}
	c.duration, err = meter.Float64Histogram("ralph_pipeline_duration_seconds", metric.WithDescription("pipeline duration"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: duration histogram: %w", err)
	}
	c.sleepHist, err = meter.Float64Histogram("ralph_rate_limit_sleep_seconds", metric.WithDescription("rate limit sleeps"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: sleep histogram: %w", err)
	}
	c.iterations, err = meter.Int64Counter("ralph_driver_iterations_total", metric.WithDescription("driver iterations by stop reason"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: iterations counter: %w", err)
	}

	if cfg.PrometheusPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		c.server = &http.Server{Addr: fmt.Sprintf(":%d", cfg.PrometheusPort), Handler: mux}
		go func() {
			_ = c.server.ListenAndServe()
		}()
	}

	return c, nil
}

// RecordPipelineRun records one pipeline completion.
func (c *Collector) RecordPipelineRun(ctx context.Context, exitCode int, duration time.Duration) {
	if !c.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.Int("exit_code", exitCode))
	c.runs.Add(ctx, 1, attrs)
	c.duration.Record(ctx, duration.Seconds(), attrs)
}

// RecordRateLimitSleep records a computed rate-limit sleep duration.
func (c *Collector) RecordRateLimitSleep(ctx context.Context, seconds float64) {
	if !c.enabled {
		return
	}
	c.sleepHist.Record(ctx, seconds)
}

// RecordDriverIteration records one driver loop iteration outcome.
func (c *Collector) RecordDriverIteration(ctx context.Context, stopReason string) {
	if !c.enabled {
		return
	}
	c.iterations.Add(ctx, 1, metric.WithAttributes(attribute.String("stop_reason", stopReason)))
}

// Shutdown stops the metrics HTTP listener if one was started.
func (c *Collector) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}
