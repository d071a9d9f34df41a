// Package metrics records operation outcomes and pushes them to a Prometheus
// Pushgateway at the end of each CLI run.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "sitebak"

	labelOperation = "operation"
	labelStatus    = "status"
)

type Recorder struct {
	registry *prometheus.Registry

	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BackupFiles       prometheus.Gauge
	BackupBytes       prometheus.Gauge
	LastSuccess       *prometheus.GaugeVec
	BackupsRetained   prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{registry: reg}
	r.Operations = newCounterVec(reg,
		"operations_total",
		"Number of completed operations by outcome",
		labelOperation, labelStatus,
	)
	r.OperationDuration = newHistogramVec(reg,
		"operation_duration_seconds",
		"Wall time of each operation",
		labelOperation,
	)
	r.BackupFiles = newGauge(reg,
		"backup_files",
		"Objects captured by the most recent backup",
	)
	r.BackupBytes = newGauge(reg,
		"backup_bytes",
		"Bytes captured by the most recent backup",
	)
	r.LastSuccess = newGaugeVec(reg,
		"last_success_timestamp_seconds",
		"Unix time of the last successful run of each operation",
		labelOperation,
	)
	r.BackupsRetained = newGauge(reg,
		"backups_retained",
		"Backups present after the last listing",
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe records one finished operation.
func (r *Recorder) Observe(operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	r.Operations.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err == nil {
		r.LastSuccess.WithLabelValues(operation).SetToCurrentTime()
	}
}

func (r *Recorder) ObserveBackup(files int, bytes int64) {
	r.BackupFiles.Set(float64(files))
	r.BackupBytes.Set(float64(bytes))
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (r *Recorder) Push(ctx context.Context, url, job, environment string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).
		Gatherer(r.registry).
		Grouping("environment", environment).
		PushContext(ctx)
}

func newCounterVec(reg prometheus.Registerer, name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	reg.MustRegister(vec)
	return vec
}

func newHistogramVec(reg prometheus.Registerer, name, help string, labels ...string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, labels)
	reg.MustRegister(vec)
	return vec
}

func newGaugeVec(reg prometheus.Registerer, name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, labels)
	reg.MustRegister(vec)
	return vec
}

func newGauge(reg prometheus.Registerer, name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
	reg.MustRegister(g)
	return g
}
