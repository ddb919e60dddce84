package importer

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/heartmarshall/account-import/internal/app/provisioning"
	"github.com/heartmarshall/account-import/internal/domain"
)

const metricsNamespace = "account_import"

// Metrics collects batch counters on a private registry. A batch process is
// not scraped, so the registry is exported as a node-exporter textfile.
type Metrics struct {
	registry     *prometheus.Registry
	rows         *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
	lastRun      *prometheus.GaugeVec
	runDuration  *prometheus.GaugeVec
}

// NewMetrics registers the importer metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_total",
			Help:      "Import rows by outcome.",
		}, []string{"variant", "status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of provisioning steps.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"variant", "step"}),
		stepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "step_failures_total",
			Help:      "Failed provisioning steps by error kind.",
		}, []string{"variant", "step", "kind"}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Finish time of the last batch run.",
		}, []string{"variant", "status"}),
		runDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last batch run.",
		}, []string{"variant"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStep records one finished step. An empty kind means success.
func (m *Metrics) ObserveStep(variant domain.Variant, step provisioning.Step, d time.Duration, kind provisioning.Kind) {
	m.stepDuration.WithLabelValues(variant.String(), step.String()).Observe(d.Seconds())
	if kind != "" {
		m.stepFailures.WithLabelValues(variant.String(), step.String(), kind.String()).Inc()
	}
}

// ObserveRow counts one row outcome.
func (m *Metrics) ObserveRow(variant domain.Variant, status domain.AuditStatus) {
	m.rows.WithLabelValues(variant.String(), status.String()).Inc()
}

// ObserveRun records the end of a batch run.
func (m *Metrics) ObserveRun(variant domain.Variant, status domain.ImportRunStatus, started, finished time.Time) {
	m.lastRun.WithLabelValues(variant.String(), status.String()).Set(float64(finished.Unix()))
	m.runDuration.WithLabelValues(variant.String()).Set(finished.Sub(started).Seconds())
}

// WriteTextfile writes the registry in text exposition format. The file is
// written atomically so a collector never reads a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
