package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the payment collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Operations      *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec
	Reconciled      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_operations_total",
				Help: "Payment orchestrator operations by outcome kind.",
			},
			[]string{"operation", "outcome"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payments_gateway_duration_seconds",
				Help:    "Latency of payment gateway calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"call", "success"},
		),
		Reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_reconciled_total",
				Help: "Pending transactions settled by the reconciliation worker.",
			},
			[]string{"result"},
		),
	}

	m.Registry.MustRegister(
		m.Operations,
		m.GatewayDuration,
		m.Reconciled,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}
