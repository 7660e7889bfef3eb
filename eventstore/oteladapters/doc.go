// Package oteladapters implements the eventstore observability interfaces on OpenTelemetry.
//
// MetricsCollector maps durations to histograms (in seconds), counters to Int64Counters and values
// to gauges. TracingCollector opens one span per Service operation or unit of work. SlogBridgeLogger
// and OTelLogger feed the contextual log messages into the OpenTelemetry logs pipeline, correlated
// with the active span.
//
// Usage:
//
//	service, _ := eventstore.NewService(
//		backend,
//		eventstore.WithMetrics(oteladapters.NewMetricsCollector(meterProvider.Meter("events-api"))),
//		eventstore.WithTracing(oteladapters.NewTracingCollector(tracerProvider.Tracer("events-api"))),
//		eventstore.WithContextualLogger(oteladapters.NewSlogBridgeLogger("events-api")),
//	)
package oteladapters
