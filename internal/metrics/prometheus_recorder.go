package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitepipe"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	taskDuration     *prom.HistogramVec
	taskResults      *prom.CounterVec
	reloadBroadcasts *prom.CounterVec
	liveReloadClient prom.Gauge
	watchTriggers    *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		taskDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of individual task runs",
			Buckets:   prom.DefBuckets,
		}, []string{"task"}),
		taskResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Task run counts by result",
		}, []string{"task", "result"}),
		reloadBroadcasts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "livereload_broadcasts_total",
			Help:      "Live reload events pushed to browsers by kind",
		}, []string{"kind"}),
		liveReloadClient: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "livereload_clients",
			Help:      "Connected live reload clients",
		}),
		watchTriggers: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_triggers_total",
			Help:      "Tasks triggered by filesystem changes",
		}, []string{"task"}),
	}
	reg.MustRegister(pr.taskDuration, pr.taskResults, pr.reloadBroadcasts, pr.liveReloadClient, pr.watchTriggers)
	return pr
}

func (p *PrometheusRecorder) ObserveTaskDuration(task string, d time.Duration) {
	p.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTaskResult(task string, result ResultLabel) {
	p.taskResults.WithLabelValues(task, string(result)).Inc()
}

func (p *PrometheusRecorder) IncReloadBroadcast(kind string) {
	p.reloadBroadcasts.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetLiveReloadClients(n int) {
	p.liveReloadClient.Set(float64(n))
}

func (p *PrometheusRecorder) IncWatchTrigger(task string) {
	p.watchTriggers.WithLabelValues(task).Inc()
}
