// Package promadapters implements eventstore.MetricsCollector on the Prometheus client library.
//
// Durations become HistogramVecs in seconds, counters CounterVecs and values GaugeVecs. The vectors are
// created on first use and registered with the given Registerer, their label names are taken from the
// first observation of a metric.
package promadapters
