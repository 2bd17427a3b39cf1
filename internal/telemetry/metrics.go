package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — Prometheus метрики выполнения workflows.
type Metrics struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	portWait     *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
	services     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется отдельный prometheus.Registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		tasksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autorun_tasks_total",
			Help: "Tasks reaching a terminal state",
		}, []string{"kind", "status"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autorun_task_duration_seconds",
			Help:    "Task duration from start to terminal state",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		portWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "autorun_port_wait_seconds",
			Help:    "Time spent waiting for a port to become connectable",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autorun_runs_total",
			Help: "Workflow runs by final status",
		}, []string{"status"}),
		services: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autorun_services_running",
			Help: "Port-gated processes kept running after the plan completed",
		}),
		gatherer: reg,
	}
}

// TaskFinished учитывает задачу, дошедшую до терминального статуса.
func (m *Metrics) TaskFinished(kind, status string, d time.Duration) {
	m.tasksTotal.WithLabelValues(kind, status).Inc()
	m.taskDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// PortWaited учитывает ожидание порта. outcome: ready, timeout, exited, cancelled.
func (m *Metrics) PortWaited(outcome string, d time.Duration) {
	m.portWait.WithLabelValues(outcome).Observe(d.Seconds())
}

// RunFinished учитывает завершение плана.
func (m *Metrics) RunFinished(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// SetServices выставляет число фоновых процессов.
func (m *Metrics) SetServices(n int) {
	m.services.Set(float64(n))
}

// Handler возвращает http.Handler для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
