package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus counters, gauges, and histograms for one
// pipeline run. The job is a batch, so metrics are pushed to a Pushgateway
// at the end of a run rather than scraped.
type Metrics struct {
	RecordsParsed      prometheus.Counter
	RecordsDropped     prometheus.Counter
	ReservoirsComputed prometheus.Counter
	RunsUnchanged      prometheus.Counter
	RunDuration        prometheus.Histogram
	OutputRecords      prometheus.Gauge
	LastRunSuccess     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates all pipeline metrics on a private registry, ready to
// push.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embalses_etl",
			Name:      "records_parsed_total",
			Help:      "Rows read from the table dump that survived coercion.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embalses_etl",
			Name:      "records_dropped_total",
			Help:      "Rows dropped for missing or unparseable required fields.",
		}),
		ReservoirsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embalses_etl",
			Name:      "reservoirs_computed_total",
			Help:      "Reservoir snapshots computed this run.",
		}),
		RunsUnchanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embalses_etl",
			Name:      "runs_unchanged_total",
			Help:      "Runs short-circuited by the change gate.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "embalses_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete pipeline run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		OutputRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "embalses_etl",
			Name:      "output_records",
			Help:      "Reservoir records in the written snapshot file.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "embalses_etl",
			Name:      "last_run_success",
			Help:      "1 when the last run finished without error.",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RecordsParsed,
		m.RecordsDropped,
		m.ReservoirsComputed,
		m.RunsUnchanged,
		m.RunDuration,
		m.OutputRecords,
		m.LastRunSuccess,
	)

	return m
}

// Push delivers the run's metrics to a Pushgateway under the job name
// "datos_embalses". Callers treat failures as non-fatal: metrics must never
// fail a run whose output was already written.
func (m *Metrics) Push(url string) error {
	if err := push.New(url, "datos_embalses").Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
