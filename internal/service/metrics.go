package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the ticketing counters exported on /metrics. A nil *Metrics
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	ticketsIssued prometheus.Counter
	allocations   *prometheus.CounterVec
	scans         *prometheus.CounterVec
	mail          *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticketsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: "tickets",
			Name:      "issued_total",
			Help:      "Tickets committed, single and bulk.",
		}),
		allocations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tickets",
			Name:      "auto_assign_total",
			Help:      "Auto-assign attempts by outcome.",
		}, []string{"outcome"}),
		scans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tickets",
			Name:      "scans_total",
			Help:      "Door scans by outcome.",
		}, []string{"outcome"}),
		mail: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tickets",
			Name:      "mail_total",
			Help:      "Outbound mail delivery attempts by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) issued(n int) {
	if m != nil {
		m.ticketsIssued.Add(float64(n))
	}
}

func (m *Metrics) allocation(outcome string) {
	if m != nil {
		m.allocations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) scan(outcome string) {
	if m != nil {
		m.scans.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) mailed(outcome string) {
	if m != nil {
		m.mail.WithLabelValues(outcome).Inc()
	}
}
