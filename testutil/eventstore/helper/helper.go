package helper

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore"
)

// GivenEventsWereCreated creates the events through the Service and returns their ids in creation order.
func GivenEventsWereCreated(
	t testing.TB,
	ctx context.Context, //nolint:revive
	service *eventstore.Service,
	events ...eventstore.Event,
) []eventstore.ID {

	ids := make([]eventstore.ID, 0, len(events))

	for _, event := range events {
		id, err := service.Create(ctx, event)
		require.NoError(t, err, "error in arranging test data")

		ids = append(ids, id)
	}

	return ids
}

// GivenTheScenarioEvents creates the standard listing scenario:
// three "Exclusive Event" records in Chicago, one of them private, plus one public record in Boston.
func GivenTheScenarioEvents(t testing.TB, ctx context.Context, service *eventstore.Service) []eventstore.ID { //nolint:revive
	return GivenEventsWereCreated(
		t,
		ctx,
		service,
		FixtureEvent("Exclusive Event", "Chicago,IL", true),
		FixtureEvent("Exclusive Event", "Chicago,IL", true),
		FixtureEvent("Exclusive Event", "Chicago,IL", false),
		FixtureEvent("Open Air", "Boston,MA", true),
	)
}

// NewObservedService wires a Service with all observability spies.
func NewObservedService(
	t testing.TB,
	backend eventstore.Backend,
) (*eventstore.Service, *LogHandlerSpy, *MetricsCollectorSpy, *TracingCollectorSpy) {

	logHandlerSpy := NewLogHandlerSpy(false)
	metricsSpy := NewMetricsCollectorSpy(true)
	tracingSpy := NewTracingCollectorSpy(true)

	service, err := eventstore.NewService(
		backend,
		eventstore.WithLogger(slog.New(logHandlerSpy)),
		eventstore.WithMetrics(metricsSpy),
		eventstore.WithTracing(tracingSpy),
	)
	require.NoError(t, err, "error in arranging the service")

	return service, logHandlerSpy, metricsSpy, tracingSpy
}

// CollectIDs returns the ids of the events in their order.
func CollectIDs(events eventstore.Events) []eventstore.ID {
	ids := make([]eventstore.ID, 0, len(events))
	for _, event := range events {
		ids = append(ids, event.ID)
	}

	return ids
}
