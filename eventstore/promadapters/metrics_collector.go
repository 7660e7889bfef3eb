package promadapters

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dharma/events-api-go/eventstore"
)

// MetricsCollector implements eventstore.MetricsCollector with Prometheus vectors.
// It is safe for concurrent use.
type MetricsCollector struct {
	registerer prometheus.Registerer
	buckets    []float64
	mu         sync.Mutex
	histograms map[string]*labeledVec[*prometheus.HistogramVec]
	counters   map[string]*labeledVec[*prometheus.CounterVec]
	gauges     map[string]*labeledVec[*prometheus.GaugeVec]
}

// labeledVec remembers the label names a vector was created with.
type labeledVec[V any] struct {
	vec        V
	labelNames []string
}

// Option configures the MetricsCollector.
type Option func(*MetricsCollector)

// WithBuckets overrides the histogram buckets, in seconds.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		m.buckets = buckets
	}
}

// NewMetricsCollector creates a collector registering its vectors with registerer,
// prometheus.DefaultRegisterer if nil.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) *MetricsCollector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms .. ~4s
		histograms: make(map[string]*labeledVec[*prometheus.HistogramVec]),
		counters:   make(map[string]*labeledVec[*prometheus.CounterVec]),
		gauges:     make(map[string]*labeledVec[*prometheus.GaugeVec]),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.histograms[metric]
	if !ok {
		labelNames := sortedKeys(labels)
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    help(metric),
			Buckets: m.buckets,
		}, labelNames)

		registered, err := register(m.registerer, vec)
		if err != nil {
			return
		}

		entry = &labeledVec[*prometheus.HistogramVec]{vec: registered, labelNames: labelNames}
		m.histograms[metric] = entry
	}

	entry.vec.With(fitLabels(entry.labelNames, labels)).Observe(duration.Seconds())
}

func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.counters[metric]
	if !ok {
		labelNames := sortedKeys(labels)
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: help(metric),
		}, labelNames)

		registered, err := register(m.registerer, vec)
		if err != nil {
			return
		}

		entry = &labeledVec[*prometheus.CounterVec]{vec: registered, labelNames: labelNames}
		m.counters[metric] = entry
	}

	entry.vec.With(fitLabels(entry.labelNames, labels)).Inc()
}

func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.gauges[metric]
	if !ok {
		labelNames := sortedKeys(labels)
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metric,
			Help: help(metric),
		}, labelNames)

		registered, err := register(m.registerer, vec)
		if err != nil {
			return
		}

		entry = &labeledVec[*prometheus.GaugeVec]{vec: registered, labelNames: labelNames}
		m.gauges[metric] = entry
	}

	entry.vec.With(fitLabels(entry.labelNames, labels)).Set(value)
}

// register registers vec, or returns the identical vector registered before by another collector.
func register[V prometheus.Collector](registerer prometheus.Registerer, vec V) (V, error) {
	err := registerer.Register(vec)
	if err == nil {
		return vec, nil
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		if existing, ok := alreadyRegistered.ExistingCollector.(V); ok {
			return existing, nil
		}
	}

	return vec, err
}

// fitLabels maps labels onto the vector's label names. Missing labels become empty, unknown ones are dropped.
func fitLabels(labelNames []string, labels map[string]string) prometheus.Labels {
	fitted := make(prometheus.Labels, len(labelNames))
	for _, name := range labelNames {
		fitted[name] = labels[name]
	}

	return fitted
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys
}

func help(metric string) string {
	return "Event store metric " + strings.ReplaceAll(metric, "_", " ") + "."
}

var _ eventstore.MetricsCollector = (*MetricsCollector)(nil)
