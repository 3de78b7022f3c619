package attendance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_operations_total",
		Help: "Tracker operations by outcome.",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_operation_duration_seconds",
		Help:    "Tracker operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

func observe(op string, start time.Time, errp *error) {
	err := *errp
	operationsTotal.WithLabelValues(op, string(OutcomeOf(err))).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
