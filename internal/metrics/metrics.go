// Package metrics exposes the Prometheus registry and the /health endpoint.
package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Metrics struct {
	registry *prometheus.Registry

	QueueDepth   prometheus.Gauge
	RunningTasks prometheus.Gauge
	TasksTotal   *prometheus.CounterVec // label: outcome
	TaskDuration prometheus.Histogram
	Admissions   *prometheus.CounterVec // label: reason
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virex_queue_depth",
			Help: "Tasks waiting in the priority queue.",
		}),
		RunningTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "virex_running_tasks",
			Help: "Tasks currently being processed.",
		}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "virex_tasks_total",
			Help: "Finished tasks by outcome.",
		}, []string{"outcome"}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "virex_task_duration_seconds",
			Help:    "Wall time of one processing attempt.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
		Admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "virex_admissions_total",
			Help: "Admission decisions by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.QueueDepth, m.RunningTasks, m.TasksTotal, m.TaskDuration, m.Admissions)
	return m
}

// Serve runs the metrics/health listener until the process exits.
func (m *Metrics) Serve(addr string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}
