// Package metric provides the framework's Prometheus instrumentation:
// core collectors for registrations, acquisitions and events, a registry
// wrapper for bundle-supplied collectors, and an HTTP exposition server.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all framework-level metrics
type Metrics struct {
	// Service registry metrics
	ServicesRegistered prometheus.Counter
	ServicesActive     prometheus.Gauge
	ServiceEvents      *prometheus.CounterVec
	Acquisitions       *prometheus.CounterVec
	FactoryFailures    prometheus.Counter

	// Listener metrics
	ListenerErrors prometheus.Counter

	// Bundle metrics
	BundlesActive prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all framework metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServicesRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "microservices",
				Subsystem: "registry",
				Name:      "registrations_total",
				Help:      "Total number of service registrations",
			},
		),

		ServicesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "microservices",
				Subsystem: "registry",
				Name:      "services_active",
				Help:      "Number of live service registrations",
			},
		),

		ServiceEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "microservices",
				Subsystem: "events",
				Name:      "service_total",
				Help:      "Total number of service events dispatched",
			},
			[]string{"type"},
		),

		Acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "microservices",
				Subsystem: "registry",
				Name:      "acquisitions_total",
				Help:      "Total number of service acquisitions",
			},
			[]string{"scope"},
		),

		FactoryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "microservices",
				Subsystem: "registry",
				Name:      "factory_failures_total",
				Help:      "Total number of failed service factory callbacks",
			},
		),

		ListenerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "microservices",
				Subsystem: "events",
				Name:      "listener_errors_total",
				Help:      "Total number of contained listener callback failures",
			},
		),

		BundlesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "microservices",
				Subsystem: "bundles",
				Name:      "active",
				Help:      "Number of bundles in the ACTIVE state",
			},
		),
	}
}

// RecordServiceRegistered counts a new registration. Safe on a nil
// receiver so an unmetered framework needs no guards at call sites.
func (m *Metrics) RecordServiceRegistered() {
	if m == nil {
		return
	}
	m.ServicesRegistered.Inc()
	m.ServicesActive.Inc()
}

// RecordServiceRemoved counts an unregistration
func (m *Metrics) RecordServiceRemoved() {
	if m == nil {
		return
	}
	m.ServicesActive.Dec()
}

// RecordServiceEvent counts one service event dispatch
func (m *Metrics) RecordServiceEvent(eventType string) {
	if m == nil {
		return
	}
	m.ServiceEvents.WithLabelValues(eventType).Inc()
}

// RecordAcquisition counts one successful service acquisition
func (m *Metrics) RecordAcquisition(scope string) {
	if m == nil {
		return
	}
	m.Acquisitions.WithLabelValues(scope).Inc()
}

// RecordFactoryFailure counts one failed factory callback
func (m *Metrics) RecordFactoryFailure() {
	if m == nil {
		return
	}
	m.FactoryFailures.Inc()
}

// RecordListenerError counts one contained listener failure
func (m *Metrics) RecordListenerError() {
	if m == nil {
		return
	}
	m.ListenerErrors.Inc()
}

// BundleStarted counts a bundle entering ACTIVE
func (m *Metrics) BundleStarted() {
	if m == nil {
		return
	}
	m.BundlesActive.Inc()
}

// BundleStopped counts a bundle leaving ACTIVE
func (m *Metrics) BundleStopped() {
	if m == nil {
		return
	}
	m.BundlesActive.Dec()
}
