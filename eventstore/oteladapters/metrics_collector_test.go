package oteladapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/memengine"
	"github.com/dharma/events-api-go/eventstore/oteladapters"
	. "github.com/dharma/events-api-go/testutil/eventstore/helper"
)

func givenMetricsCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "collecting metrics failed")

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration_InSeconds(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	collector.RecordDuration(eventstore.MetricOperationDuration, 150*time.Millisecond, map[string]string{
		"operation": "create",
		"status":    "success",
	})

	// assert
	histogram := findHistogramMetric(t, collect(t, reader), eventstore.MetricOperationDuration)
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "create"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter_PerLabelSet(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()
	ctx := context.Background()
	notFound := map[string]string{"operation": "get", "error_type": "not_found"}
	validation := map[string]string{"operation": "create", "error_type": "validation"}

	// act
	collector.IncrementCounter(eventstore.MetricOperationErrors, notFound)
	collector.IncrementCounterContext(ctx, eventstore.MetricOperationErrors, notFound)
	collector.IncrementCounter(eventstore.MetricOperationErrors, validation)

	// assert
	counter := findCounterMetric(t, collect(t, reader), eventstore.MetricOperationErrors)
	require.Len(t, counter.DataPoints, 2)
	assert.True(t, counter.IsMonotonic)

	values := map[string]int64{}
	for _, dataPoint := range counter.DataPoints {
		errorType, _ := dataPoint.Attributes.Value("error_type")
		values[errorType.AsString()] = dataPoint.Value
	}

	assert.Equal(t, map[string]int64{"not_found": 2, "validation": 1}, values)
}

func Test_MetricsCollector_RecordValue_KeepsTheLastValue(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()
	labels := map[string]string{"operation": "total"}

	// act
	collector.RecordValue(eventstore.MetricRecordsTotal, 3, labels)
	collector.RecordValueContext(context.Background(), eventstore.MetricRecordsTotal, 4, labels)

	// assert
	gauge := findGaugeMetric(t, collect(t, reader), eventstore.MetricRecordsTotal)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 4.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_ConcurrentUse(t *testing.T) {
	// setup
	collector, reader := givenMetricsCollector()

	// act
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter(eventstore.MetricOperationCalls, map[string]string{"operation": "list"})
			collector.RecordDuration(eventstore.MetricOperationDuration, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	// assert
	resourceMetrics := collect(t, reader)
	counter := findCounterMetric(t, resourceMetrics, eventstore.MetricOperationCalls)
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(20), counter.DataPoints[0].Value)
	assert.Equal(t, uint64(20), findHistogramMetric(t, resourceMetrics, eventstore.MetricOperationDuration).DataPoints[0].Count)
}

func Test_MetricsCollector_WiredIntoTheService(t *testing.T) {
	// setup
	ctx := context.Background()
	collector, reader := givenMetricsCollector()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)
	service, err := eventstore.NewService(backend, eventstore.WithMetrics(collector))
	require.NoError(t, err)

	// arrange
	GivenTheScenarioEvents(t, ctx, service)

	// act
	events, listErr := service.ListByCriteria(ctx, "location:chicago,il", eventstore.FromBeginning, eventstore.Unbounded)
	_, getErr := service.Get(ctx, "unknown")

	// assert
	require.NoError(t, listErr)
	require.Len(t, events, 3)
	assert.ErrorIs(t, getErr, eventstore.ErrNotFound)

	resourceMetrics := collect(t, reader)
	assert.InDelta(t, 3.0, findGaugeMetric(t, resourceMetrics, eventstore.MetricListResultSize).DataPoints[0].Value, 0.0001)
	assert.NotEmpty(t, findCounterMetric(t, resourceMetrics, eventstore.MetricOperationErrors).DataPoints)
	assert.NotEmpty(t, findHistogramMetric(t, resourceMetrics, eventstore.MetricOperationDuration).DataPoints)
}

func Test_MetricsCollector_InstrumentCreationErrors(t *testing.T) {
	// setup
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	collector := oteladapters.NewMetricsCollector(&errorInjectingMeter{Meter: provider.Meter("test")})
	ctx := context.Background()

	// act + assert
	assert.NotPanics(t, func() {
		collector.RecordDuration("error_histogram", 100*time.Millisecond, nil)
		collector.IncrementCounter("error_counter", nil)
		collector.RecordValue("error_gauge", 42.0, nil)
		collector.RecordDurationContext(ctx, "error_histogram", 100*time.Millisecond, nil)
		collector.IncrementCounterContext(ctx, "error_counter", nil)
		collector.RecordValueContext(ctx, "error_gauge", 42.0, nil)
	})

	collector.IncrementCounter("healthy_counter", nil)
	assert.Equal(t, int64(1), findCounterMetric(t, collect(t, reader), "healthy_counter").DataPoints[0].Value)
}

// errorInjectingMeter wraps a real meter but fails to create instruments whose name starts with "error_".
type errorInjectingMeter struct {
	metric.Meter
}

func (m *errorInjectingMeter) Float64Histogram(name string, options ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	if name == "error_histogram" {
		return nil, errors.New("histogram creation failed")
	}

	return m.Meter.Float64Histogram(name, options...)
}

func (m *errorInjectingMeter) Int64Counter(name string, options ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	if name == "error_counter" {
		return nil, errors.New("counter creation failed")
	}

	return m.Meter.Int64Counter(name, options...)
}

func (m *errorInjectingMeter) Float64Gauge(name string, options ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	if name == "error_gauge" {
		return nil, errors.New("gauge creation failed")
	}

	return m.Meter.Float64Gauge(name, options...)
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Histogram[float64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if h, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				return &h
			}
		}
	}

	t.Fatalf("histogram metric %s not found", name)

	return nil
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Sum[int64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if c, ok := m.Data.(metricdata.Sum[int64]); ok && m.Name == name {
				return &c
			}
		}
	}

	t.Fatalf("counter metric %s not found", name)

	return nil
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) *metricdata.Gauge[float64] {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if g, ok := m.Data.(metricdata.Gauge[float64]); ok && m.Name == name {
				return &g
			}
		}
	}

	t.Fatalf("gauge metric %s not found", name)

	return nil
}
