// Package metrics exposes run counters to Prometheus.
package metrics

import (
	"context"
	"net/http"

	"catalogsync/internal/models"
	"catalogsync/internal/syncer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	Records   *prometheus.CounterVec
	Errors    *prometheus.CounterVec
	Steps     *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	Excluded  prometheus.Counter
	Runs      *prometheus.CounterVec
	LastRunAt prometheus.Gauge
}

// New registers the catalogsync counters on a private registry, plus the
// Go runtime and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsync",
			Name:      "records_total",
			Help:      "Records processed by terminal state",
		}, []string{"state"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsync",
			Name:      "record_errors_total",
			Help:      "Failed records by error kind",
		}, []string{"kind"}),
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsync",
			Name:      "post_process_steps_total",
			Help:      "Post-processing step results",
		}, []string{"step", "status"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsync",
			Name:      "retries_total",
			Help:      "Retried remote calls by operation",
		}, []string{"op"}),
		Excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "catalogsync",
			Name:      "excluded_out_of_stock_total",
			Help:      "Records excluded for having no stock",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catalogsync",
			Name:      "runs_total",
			Help:      "Finished runs by kind and status",
		}, []string{"kind", "status"}),
		LastRunAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "catalogsync",
			Name:      "last_run_finished_timestamp_seconds",
			Help:      "Unix time of the last finished run",
		}),
	}
	c.registry.MustRegister(
		c.Records, c.Errors, c.Steps, c.Retries, c.Excluded, c.Runs, c.LastRunAt,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) RecordProcessed(_ context.Context, _ *models.Product, o syncer.Outcome) {
	c.Records.WithLabelValues(string(o.State)).Inc()
	if o.Failed() {
		c.Errors.WithLabelValues(string(o.Kind)).Inc()
	}
	for _, s := range o.Steps {
		c.Steps.WithLabelValues(s.Name, string(s.Status)).Inc()
	}
}

// OnRetry fits retry.Policy.OnRetry.
func (c *Collector) OnRetry(op string, _ int, _ error) {
	c.Retries.WithLabelValues(op).Inc()
}

func (c *Collector) RunFinished(run *models.SyncRun) {
	c.Runs.WithLabelValues(string(run.Kind), string(run.Status)).Inc()
	c.Excluded.Add(float64(run.OutOfStock))
	if run.FinishedAt != nil {
		c.LastRunAt.Set(float64(run.FinishedAt.Unix()))
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
