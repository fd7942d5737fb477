package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счётчики движка жизненного цикла. Регистрируются в глобальном реестре,
// отдаются наружу через /metrics.
var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhub",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Applied status transitions by entity kind and target status.",
	}, []string{"entity", "to"})

	DenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhub",
		Subsystem: "lifecycle",
		Name:      "denials_total",
		Help:      "Denied transition requests by entity kind and reason.",
	}, []string{"entity", "reason"})

	CascadeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "workhub",
		Subsystem: "lifecycle",
		Name:      "cascade_retries_total",
		Help:      "Retries of individual cascade steps.",
	})

	PartialAppliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "workhub",
		Subsystem: "lifecycle",
		Name:      "partial_applies_total",
		Help:      "Operations that exhausted the retry budget mid-cascade.",
	})
)
