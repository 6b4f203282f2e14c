package etl

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics records run outcomes on a private registry so a batch job can push
// it to a Pushgateway on exit.
type Metrics struct {
	Registry *prometheus.Registry

	Runs               *prometheus.CounterVec
	RowsLoaded         prometheus.Gauge
	ValidationFailures *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketload_runs_total",
			Help: "Pipeline runs by terminal state",
		}, []string{"state"}),
		RowsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketload_rows_loaded",
			Help: "Row count of the destination table after the last load",
		}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketload_validation_failures_total",
			Help: "Rejected batches by violated rule",
		}, []string{"rule"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketload_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// ruleLabel maps a validation error to a short metric label.
func ruleLabel(err error) string {
	for label, kind := range map[string]error{
		"missing_columns":      ErrMissingColumns,
		"null_values":          ErrNullValues,
		"malformed_value":      ErrMalformedValue,
		"invalid_price":        ErrInvalidPrice,
		"duplicate_timestamps": ErrDuplicateTimestamps,
	} {
		if errors.Is(err, kind) {
			return label
		}
	}
	return "other"
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Metrics) Push(gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(m.Registry).Push(); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gatewayURL, err)
	}
	return nil
}
