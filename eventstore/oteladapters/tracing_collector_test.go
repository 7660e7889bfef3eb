package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/memengine"
	"github.com/dharma/events-api-go/eventstore/oteladapters"
	. "github.com/dharma/events-api-go/testutil/eventstore/helper"
)

func givenTracingCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func Test_TracingCollector_SuccessfulSpan(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	_, span := collector.StartSpan(context.Background(), "eventstore.list", map[string]string{"operation": "list"})
	span.AddAttribute("duration_ms", "1.25")
	collector.FinishSpan(span, "success", map[string]string{"event_count": "3"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	assert.Equal(t, "eventstore.list", spans[0].Name)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assertSpanHasAttribute(t, spans[0], "operation", "list")
	assertSpanHasAttribute(t, spans[0], "duration_ms", "1.25")
	assertSpanHasAttribute(t, spans[0], "event_count", "3")
}

func Test_TracingCollector_ErrorSpanCarriesTheErrorType(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	_, span := collector.StartSpan(context.Background(), "eventstore.get", nil)
	collector.FinishSpan(span, "error", map[string]string{"error_type": "not_found"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "not_found", spans[0].Status.Description)
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	tests := []struct {
		status       string
		expectedCode codes.Code
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "something_else", expectedCode: codes.Unset},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			// setup
			collector, exporter := givenTracingCollector()

			// act
			_, span := collector.StartSpan(context.Background(), "op", nil)
			collector.FinishSpan(span, tt.status, nil)

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.expectedCode, spans[0].Status.Code)
		})
	}
}

func Test_TracingCollector_IgnoresForeignSpanContexts(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act + assert
	assert.NotPanics(t, func() {
		collector.FinishSpan(&SpySpanContext{}, "success", nil)
	})
	assert.Empty(t, exporter.GetSpans())
}

func Test_TracingCollector_UnitsAreChildrenOfServiceOperations(t *testing.T) {
	// setup
	ctx := context.Background()
	collector, exporter := givenTracingCollector()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)
	service, err := eventstore.NewService(backend, eventstore.WithTracing(collector))
	require.NoError(t, err)

	parentCtx, parent := collector.StartSpan(ctx, "request", nil)

	// act
	_, createErr := service.Create(parentCtx, FixtureCompleteEvent())
	collector.FinishSpan(parent, "success", nil)

	// assert
	require.NoError(t, createErr)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "eventstore.create", spans[0].Name)
	assert.Equal(t, "request", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			return
		}
	}

	assert.Failf(t, "attribute missing", "span %s should have attribute %s=%s", span.Name, key, expectedValue)
}
