// Package metrics exposes CarrierBox counters in Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	TokensIssued     prometheus.Counter
	AuthFailures     *prometheus.CounterVec
	Logouts          prometheus.Counter
	ShipmentsCreated prometheus.Counter
	LabelsCreated    *prometheus.CounterVec
	EventsFailed     *prometheus.CounterVec
}

// New registers all collectors on reg. Registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carrierbox",
			Name:      "tokens_issued_total",
			Help:      "Bearer tokens issued.",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carrierbox",
			Name:      "auth_failures_total",
			Help:      "Rejected requests by reason.",
		}, []string{"reason"}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carrierbox",
			Name:      "logouts_total",
			Help:      "Tokens invalidated by logout.",
		}),
		ShipmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carrierbox",
			Name:      "shipments_created_total",
			Help:      "Shipments added to the store.",
		}),
		LabelsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carrierbox",
			Name:      "labels_created_total",
			Help:      "Shipment labels added, by format.",
		}, []string{"format"}),
		EventsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carrierbox",
			Name:      "events_failed_total",
			Help:      "Domain events that could not be published, by topic.",
		}, []string{"topic"}),
	}
	reg.MustRegister(m.TokensIssued, m.AuthFailures, m.Logouts, m.ShipmentsCreated, m.LabelsCreated, m.EventsFailed)
	return m
}

// StoreStats is the subset of shippingdb.Stats exported as gauges.
type StoreStats struct {
	LiveTokens int
	Shipments  int
	Labels     int
}

// RegisterStoreGauges exports store sizes, sampled on every scrape.
func RegisterStoreGauges(reg prometheus.Registerer, stats func() StoreStats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "carrierbox",
			Name:      "live_tokens",
			Help:      "Tokens currently held in the registry (expired tokens linger until observed).",
		}, func() float64 { return float64(stats().LiveTokens) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "carrierbox",
			Name:      "shipments",
			Help:      "Shipments in the store.",
		}, func() float64 { return float64(stats().Shipments) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "carrierbox",
			Name:      "labels",
			Help:      "Labels in the store.",
		}, func() float64 { return float64(stats().Labels) }),
	)
}

// The helpers below are no-ops on a nil *Metrics so callers can run without a registry.

func (m *Metrics) TokenIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

func (m *Metrics) AuthFailed(reason string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) LoggedOut() {
	if m != nil {
		m.Logouts.Inc()
	}
}

func (m *Metrics) ShipmentCreated() {
	if m != nil {
		m.ShipmentsCreated.Inc()
	}
}

func (m *Metrics) LabelCreated(format string) {
	if m != nil {
		m.LabelsCreated.WithLabelValues(format).Inc()
	}
}

func (m *Metrics) EventFailed(topic string) {
	if m != nil {
		m.EventsFailed.WithLabelValues(topic).Inc()
	}
}
