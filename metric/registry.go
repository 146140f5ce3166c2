package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/xru192/CppMicroServices/errors"
)

// MetricsRegistrar defines the interface for registering bundle-specific
// metrics alongside the framework's own collectors.
type MetricsRegistrar interface {
	RegisterCounter(bundleName, metricName string, counter prometheus.Counter) error
	RegisterGauge(bundleName, metricName string, gauge prometheus.Gauge) error
	RegisterCounterVec(bundleName, metricName string, counterVec *prometheus.CounterVec) error
	Unregister(bundleName, metricName string) bool
}

// MetricsRegistry manages the registration and lifecycle of metrics
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a new metrics registry with the framework's
// core collectors and the Go runtime collectors pre-registered.
func NewMetricsRegistry() *MetricsRegistry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &MetricsRegistry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.Metrics = NewMetrics()
	registry.registerMetrics()

	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core framework metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// RegisterCounter registers a counter metric for a bundle
func (r *MetricsRegistry) RegisterCounter(bundleName, metricName string, counter prometheus.Counter) error {
	return r.register(bundleName, metricName, counter, "RegisterCounter")
}

// RegisterGauge registers a gauge metric for a bundle
func (r *MetricsRegistry) RegisterGauge(bundleName, metricName string, gauge prometheus.Gauge) error {
	return r.register(bundleName, metricName, gauge, "RegisterGauge")
}

// RegisterCounterVec registers a counter vector metric for a bundle
func (r *MetricsRegistry) RegisterCounterVec(bundleName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(bundleName, metricName, counterVec, "RegisterCounterVec")
}

func (r *MetricsRegistry) register(bundleName, metricName string, collector prometheus.Collector, op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", bundleName, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for bundle %s", metricName, bundleName),
			"MetricsRegistry", op, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", op,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", op,
			"failed to register collector with prometheus")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// Unregister removes a metric from the registry
func (r *MetricsRegistry) Unregister(bundleName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", bundleName, metricName)

	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registeredMetrics, key)
	}

	return success
}

// registerMetrics registers all core framework metrics
func (r *MetricsRegistry) registerMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.ServicesRegistered,
		r.Metrics.ServicesActive,
		r.Metrics.ServiceEvents,
		r.Metrics.Acquisitions,
		r.Metrics.FactoryFailures,
		r.Metrics.ListenerErrors,
		r.Metrics.BundlesActive,
	)
}
