package promadapters_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/memengine"
	"github.com/dharma/events-api-go/eventstore/promadapters"
	. "github.com/dharma/events-api-go/testutil/eventstore/helper"
)

func givenMetricsCollector() (*promadapters.MetricsCollector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()

	return promadapters.NewMetricsCollector(registry), registry
}

func Test_MetricsCollector_IncrementCounter_PerLabelSet(t *testing.T) {
	// setup
	collector, registry := givenMetricsCollector()
	notFound := map[string]string{"operation": "get", "error_type": "not_found"}
	validation := map[string]string{"operation": "create", "error_type": "validation"}

	// act
	collector.IncrementCounter(eventstore.MetricOperationErrors, notFound)
	collector.IncrementCounter(eventstore.MetricOperationErrors, notFound)
	collector.IncrementCounter(eventstore.MetricOperationErrors, validation)

	// assert
	expected := `
# HELP eventstore_operation_errors_total Event store metric eventstore operation errors total.
# TYPE eventstore_operation_errors_total counter
eventstore_operation_errors_total{error_type="not_found",operation="get"} 2
eventstore_operation_errors_total{error_type="validation",operation="create"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), eventstore.MetricOperationErrors))
}

func Test_MetricsCollector_RecordDuration_InSeconds(t *testing.T) {
	// setup
	collector, registry := givenMetricsCollector()

	// act
	collector.RecordDuration(eventstore.MetricOperationDuration, 150*time.Millisecond, map[string]string{
		"operation": "create",
		"status":    "success",
	})

	// assert
	families, err := registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)

	histogram := families[0].GetMetric()[0].GetHistogram()
	assert.Equal(t, uint64(1), histogram.GetSampleCount())
	assert.InDelta(t, 0.15, histogram.GetSampleSum(), 0.001)
}

func Test_MetricsCollector_RecordValue_KeepsTheLatestValue(t *testing.T) {
	// setup
	collector, registry := givenMetricsCollector()
	labels := map[string]string{"operation": "total"}

	// act
	collector.RecordValue(eventstore.MetricRecordsTotal, 3, labels)
	collector.RecordValue(eventstore.MetricRecordsTotal, 7, labels)

	// assert
	expected := `
# HELP eventstore_records_total Event store metric eventstore records total.
# TYPE eventstore_records_total gauge
eventstore_records_total{operation="total"} 7
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), eventstore.MetricRecordsTotal))
}

func Test_MetricsCollector_FitsDeviatingLabelSets(t *testing.T) {
	// setup
	collector, registry := givenMetricsCollector()

	// act
	collector.IncrementCounter("eventstore_test_total", map[string]string{"operation": "get", "status": "success"})
	collector.IncrementCounter("eventstore_test_total", map[string]string{"operation": "get"})
	collector.IncrementCounter("eventstore_test_total", map[string]string{"operation": "get", "status": "success", "extra": "x"})

	// assert
	expected := `
# HELP eventstore_test_total Event store metric eventstore test total.
# TYPE eventstore_test_total counter
eventstore_test_total{operation="get",status=""} 1
eventstore_test_total{operation="get",status="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "eventstore_test_total"))
}

func Test_MetricsCollector_SharesVectorsBetweenCollectors(t *testing.T) {
	// setup
	registry := prometheus.NewRegistry()
	first := promadapters.NewMetricsCollector(registry)
	second := promadapters.NewMetricsCollector(registry)
	labels := map[string]string{"operation": "delete", "status": "success"}

	// act
	first.IncrementCounter(eventstore.MetricOperationCalls, labels)
	second.IncrementCounter(eventstore.MetricOperationCalls, labels)

	// assert
	count, err := testutil.GatherAndCount(registry, eventstore.MetricOperationCalls)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, families[0].GetMetric()[0].GetCounter().GetValue(), 0.0001)
}

func Test_MetricsCollector_WiredIntoService(t *testing.T) {
	// setup
	ctx := context.Background()
	collector, registry := givenMetricsCollector()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)
	service, err := eventstore.NewService(backend, eventstore.WithMetrics(collector))
	require.NoError(t, err)

	// arrange
	GivenTheScenarioEvents(t, ctx, service)

	// act
	_, err = service.Get(ctx, "missing")
	require.ErrorIs(t, err, eventstore.ErrNotFound)
	total, err := service.Total(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, int64(4), total)

	count, err := testutil.GatherAndCount(registry,
		eventstore.MetricOperationDuration,
		eventstore.MetricOperationCalls,
		eventstore.MetricOperationErrors,
		eventstore.MetricRecordsTotal,
	)
	require.NoError(t, err)
	assert.Positive(t, count)

	expected := `
# HELP eventstore_records_total Event store metric eventstore records total.
# TYPE eventstore_records_total gauge
eventstore_records_total{operation="total"} 4
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), eventstore.MetricRecordsTotal))
}
