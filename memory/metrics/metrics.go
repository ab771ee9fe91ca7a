// Package metrics exports memory operation metrics to Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/becomeliminal/nim-memory/memory"
)

const namespace = "nim_memory"

// Observer implements memory.Observer with Prometheus collectors.
type Observer struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Observer{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Memory operations by outcome",
			},
			[]string{"operation", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Memory operation latency",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
	}
}

// ObserveOperation records one operation.
func (o *Observer) ObserveOperation(op string, err error, elapsed time.Duration) {
	o.operations.WithLabelValues(op, Result(err)).Inc()
	o.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Result maps an operation error to its metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, memory.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, memory.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, memory.ErrConnection):
		return "connection_error"
	case errors.Is(err, memory.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}
