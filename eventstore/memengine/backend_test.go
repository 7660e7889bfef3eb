package memengine_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore"
	"github.com/dharma/events-api-go/eventstore/memengine"
	. "github.com/dharma/events-api-go/testutil/eventstore/helper"
)

var errAbort = errors.New("abort the unit of work")

func Test_Update_RollsBackEverythingOnError(t *testing.T) {
	// setup
	ctx := context.Background()
	logSpy := NewLogHandlerSpy(false)
	backend, err := memengine.NewBackend(memengine.WithLogger(slog.New(logSpy)))
	require.NoError(t, err)

	// arrange
	var keptID eventstore.ID
	err = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		id, insertErr := tx.Records().Insert(ctx, FixtureCompleteEvent())
		require.NoError(t, insertErr)
		require.NoError(t, tx.Indexes().IndexInsert(ctx, id, FixtureCompleteEvent().Normalized()))
		keptID = id

		return tx.Counter().Increment(ctx)
	})
	require.NoError(t, err)

	// act
	err = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		id, insertErr := tx.Records().Insert(ctx, FixtureEvent("Open Air", "Boston,MA", true))
		require.NoError(t, insertErr)
		require.NoError(t, tx.Indexes().IndexInsert(ctx, id, FixtureEvent("Open Air", "boston,ma", true)))
		require.NoError(t, tx.Counter().Increment(ctx))

		old, getErr := tx.Records().Get(ctx, keptID)
		require.NoError(t, getErr)
		require.NoError(t, tx.Records().Delete(ctx, keptID))
		require.NoError(t, tx.Indexes().IndexRemove(ctx, keptID, old))
		require.NoError(t, tx.Counter().Decrement(ctx))

		return errAbort
	})

	// assert
	assert.ErrorIs(t, err, errAbort)

	err = backend.View(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		ids, allErr := tx.Records().AllIDs(ctx)
		require.NoError(t, allErr)
		assert.Equal(t, []eventstore.ID{keptID}, ids)

		total, valueErr := tx.Counter().Value(ctx)
		require.NoError(t, valueErr)
		assert.Equal(t, int64(1), total)

		chicago, lookupErr := tx.Indexes().Lookup(ctx, eventstore.FieldLocation, "chicago,il")
		require.NoError(t, lookupErr)
		assert.Equal(t, eventstore.NewIDSet(keptID), chicago)

		boston, lookupErr := tx.Indexes().Lookup(ctx, eventstore.FieldLocation, "boston,ma")
		require.NoError(t, lookupErr)
		assert.Equal(t, 0, boston.Len())

		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, backend.BucketCount(eventstore.FieldLocation))
	assert.True(t, logSpy.HasDebugLogWithMessage("memengine: unit of work rolled back").Assert())
}

func Test_Update_RollsBackWhenTheUnitPanics(t *testing.T) {
	// setup
	ctx := context.Background()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)

	// act
	assert.PanicsWithValue(t, "unit of work blew up", func() {
		_ = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
			id, insertErr := tx.Records().Insert(ctx, FixtureCompleteEvent())
			require.NoError(t, insertErr)
			require.NoError(t, tx.Indexes().IndexInsert(ctx, id, FixtureCompleteEvent().Normalized()))
			require.NoError(t, tx.Counter().Increment(ctx))

			panic("unit of work blew up")
		})
	})

	// assert
	err = backend.View(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		ids, allErr := tx.Records().AllIDs(ctx)
		require.NoError(t, allErr)
		assert.Empty(t, ids)

		total, valueErr := tx.Counter().Value(ctx)
		require.NoError(t, valueErr)
		assert.Zero(t, total)

		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, backend.BucketCount(eventstore.FieldLocation))

	err = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		return tx.Counter().Increment(ctx)
	})
	assert.NoError(t, err, "the write lock must be released after the panic")
}

func Test_View_RejectsMutations(t *testing.T) {
	// setup
	ctx := context.Background()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)

	// act
	err = backend.View(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		_, insertErr := tx.Records().Insert(ctx, FixtureCompleteEvent())
		assert.ErrorIs(t, insertErr, eventstore.ErrReadOnlyUnit)
		assert.ErrorIs(t, tx.Indexes().IndexInsert(ctx, "x", FixtureCompleteEvent()), eventstore.ErrReadOnlyUnit)
		assert.ErrorIs(t, tx.Counter().Increment(ctx), eventstore.ErrReadOnlyUnit)

		return nil
	})

	// assert
	require.NoError(t, err)
}

func Test_RecordStore_ValidatesAndReportsMisses(t *testing.T) {
	// setup
	ctx := context.Background()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)

	// act
	err = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		_, insertErr := tx.Records().Insert(ctx, FixtureEventMissingDescription())
		assert.ErrorIs(t, insertErr, eventstore.ErrValidationFailed)

		assert.ErrorIs(t, tx.Records().Replace(ctx, "missing", FixtureCompleteEvent()), eventstore.ErrNotFound)
		assert.ErrorIs(t, tx.Records().Delete(ctx, "missing"), eventstore.ErrNotFound)

		_, getErr := tx.Records().Get(ctx, "missing")
		assert.ErrorIs(t, getErr, eventstore.ErrNotFound)

		found, getManyErr := tx.Records().GetMany(ctx, []eventstore.ID{"missing"})
		require.NoError(t, getManyErr)
		assert.Empty(t, found)

		return nil
	})

	// assert
	require.NoError(t, err)
}

func Test_RecordStore_ReturnsDetachedCopies(t *testing.T) {
	// setup
	ctx := context.Background()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)

	// arrange
	event := FixtureCompleteEvent()
	var id eventstore.ID
	err = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		var insertErr error
		id, insertErr = tx.Records().Insert(ctx, event)

		return insertErr
	})
	require.NoError(t, err)
	*event.IsPublic = true

	// act
	var found eventstore.Event
	err = backend.View(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		var getErr error
		found, getErr = tx.Records().Get(ctx, id)

		return getErr
	})
	require.NoError(t, err)

	// assert
	assert.False(t, *found.IsPublic)
	assert.Empty(t, found.ID, "records are stored without their id")
}

func Test_Counter_NeverDropsBelowZero(t *testing.T) {
	// setup
	ctx := context.Background()
	backend, err := memengine.NewBackend()
	require.NoError(t, err)

	// act
	err = backend.Update(ctx, func(ctx context.Context, tx eventstore.Tx) error {
		return tx.Counter().Decrement(ctx)
	})

	// assert
	assert.ErrorIs(t, err, eventstore.ErrWritingFailed)
}

func Test_Backend_DuplicateGeneratedID(t *testing.T) {
	// setup
	ctx := context.Background()
	backend, err := memengine.NewBackend(memengine.WithIDGenerator(func() (eventstore.ID, error) {
		return "always-the-same", nil
	}))
	require.NoError(t, err)
	service, err := eventstore.NewService(backend)
	require.NoError(t, err)

	// act
	_, firstErr := service.Create(ctx, FixtureCompleteEvent())
	_, secondErr := service.Create(ctx, FixtureCompleteEvent())

	// assert
	require.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, eventstore.ErrWritingFailed)

	total, err := service.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func Test_NewBackend_RejectsNilIDGenerator(t *testing.T) {
	_, err := memengine.NewBackend(memengine.WithIDGenerator(nil))

	assert.Error(t, err)
}
