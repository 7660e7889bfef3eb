package postgresengine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore"
	. "github.com/dharma/events-api-go/testutil/eventstore/helper"
	pghelper "github.com/dharma/events-api-go/testutil/postgresengine/helper"
)

const benchmarkStoreSize = 1000

func givenBenchmarkService(b *testing.B) *eventstore.Service {
	b.Helper()

	td := pghelper.NewTestDatabaseOrSkip(b, pghelper.AdapterPGXPool, false, pghelper.DefaultTableNames())
	service, err := eventstore.NewService(td.Backend)
	require.NoError(b, err)

	ctx := context.Background()
	locations := []string{"Chicago,IL", "Boston,MA", "Seattle,WA", "Austin,TX"}
	for i := range benchmarkStoreSize {
		event := FixtureEvent(fmt.Sprintf("Event %d", i%20), locations[i%len(locations)], i%2 == 0)
		_, err = service.Create(ctx, event)
		require.NoError(b, err)
	}

	return service
}

func Benchmark_Create_With_Many_Records_InTheStore(b *testing.B) {
	// setup
	ctx := context.Background()
	service := givenBenchmarkService(b)

	// act
	b.ResetTimer()
	var createTime time.Duration

	for range b.N {
		start := time.Now()
		_, err := service.Create(ctx, FixtureCompleteEvent())
		createTime += time.Since(start)

		require.NoError(b, err)
	}

	b.ReportMetric(float64(createTime.Milliseconds())/float64(b.N), "ms/create-op")
}

func Benchmark_List_With_Many_Records_InTheStore(b *testing.B) {
	// setup
	ctx := context.Background()
	service := givenBenchmarkService(b)

	benchmarks := []struct {
		name     string
		criteria string
	}{
		{name: "unfiltered page", criteria: ""},
		{name: "one predicate", criteria: "location:chicago,il"},
		{name: "two predicates", criteria: "location:chicago,il;isPublic:true"},
		{name: "three predicates", criteria: "location:chicago,il;isPublic:true;name:Event 4"},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			b.ResetTimer()
			var listTime time.Duration

			for range b.N {
				start := time.Now()
				_, err := service.ListByCriteria(ctx, bm.criteria, 1, 20)
				listTime += time.Since(start)

				require.NoError(b, err)
			}

			b.ReportMetric(float64(listTime.Milliseconds())/float64(b.N), "ms/list-op")
		})
	}
}
