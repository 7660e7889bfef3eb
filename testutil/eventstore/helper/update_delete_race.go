package helper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore"
)

// UpdateDeleteRace is the outcome of RaceUpdatesAndDeletes.
type UpdateDeleteRace struct {
	SucceededDeletes int
	SucceededUpdates int

	// LateUpdates counts updates that were started after a Delete had already returned and still succeeded.
	LateUpdates int

	// UnexpectedErrs holds every error that is not eventstore.ErrNotFound.
	UnexpectedErrs []error

	// Bodies holds every event body the record may have carried, the original first.
	Bodies []eventstore.Event
}

// RaceUpdatesAndDeletes runs updaters Update calls and deleters Delete calls against the same id at once.
// Every updater writes its own location, so each one touches different index buckets.
func RaceUpdatesAndDeletes(
	ctx context.Context, //nolint:revive
	service *eventstore.Service,
	id eventstore.ID,
	original eventstore.Event,
	updaters int,
	deleters int,
) UpdateDeleteRace {

	race := UpdateDeleteRace{Bodies: []eventstore.Event{original}}
	for i := range updaters {
		race.Bodies = append(race.Bodies, FixtureEvent(original.Name, fmt.Sprintf("Racetown %d,RC", i), i%2 == 0))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		deleted atomic.Bool
		start   = make(chan struct{})
	)

	record := func(err error, isDelete bool, startedAfterDelete bool) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case err == nil && isDelete:
			race.SucceededDeletes++
		case err == nil:
			race.SucceededUpdates++
			if startedAfterDelete {
				race.LateUpdates++
			}
		case !errors.Is(err, eventstore.ErrNotFound):
			race.UnexpectedErrs = append(race.UnexpectedErrs, err)
		}
	}

	for i := range updaters {
		wg.Add(1)
		go func(body eventstore.Event) {
			defer wg.Done()
			<-start

			startedAfterDelete := deleted.Load()
			record(service.Update(ctx, id, body), false, startedAfterDelete)
		}(race.Bodies[i+1])
	}

	for range deleters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			err := service.Delete(ctx, id)
			if err == nil {
				deleted.Store(true)
			}
			record(err, true, false)
		}()
	}

	close(start)
	wg.Wait()

	return race
}

// IDsInBuckets looks up every index bucket the given bodies belong to and returns the union of their ids.
func IDsInBuckets(
	t testing.TB,
	ctx context.Context, //nolint:revive
	backend eventstore.Backend,
	bodies ...eventstore.Event,
) eventstore.IDSet {

	found := eventstore.NewIDSet()

	err := backend.View(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		for _, body := range bodies {
			for field, value := range body.Normalized().IndexValues() {
				bucket, lookupErr := tx.Indexes().Lookup(ctx, field, value)
				if lookupErr != nil {
					return lookupErr
				}

				for bucketID := range bucket {
					found[bucketID] = struct{}{}
				}
			}
		}

		return nil
	})
	require.NoError(t, err, "error in looking up index buckets")

	return found
}
