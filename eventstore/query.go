package eventstore

import (
	"context"
)

const (
	// FromBeginning is the startIndex meaning "not specified": the listing starts with the first record.
	FromBeginning = 0

	// Unbounded is the pageSize meaning "not specified": the listing contains every remaining record.
	Unbounded = 0
)

// QueryEngine evaluates a Filter plus pagination over the indexes of one unit of work.
// It only reads from the RecordStore and the IndexManager.
type QueryEngine struct{}

// NewQueryEngine creates a QueryEngine.
func NewQueryEngine() QueryEngine {
	return QueryEngine{}
}

// List returns the page of events matching all predicates of the filter.
//
// Without predicates, the candidates are all records in insertion order. With predicates, they are the
// intersection of the index buckets, in ascending id order.
//
// startIndex is the 1-based position of the first returned candidate, FromBeginning (0) starts at the first.
// pageSize caps the page, Unbounded (0) returns all remaining candidates.
// Invalid bounds (negative values, a start beyond the last candidate) give an empty page, never an error.
// Candidates that were deleted before they could be resolved are skipped.
func (qe QueryEngine) List(
	ctx context.Context,
	tx Tx,
	filter Filter,
	startIndex int,
	pageSize int,
) (Events, error) {

	empty := make(Events, 0)

	if startIndex < 0 || pageSize < 0 {
		return empty, nil
	}

	candidates, err := qe.candidates(ctx, tx, filter)
	if err != nil {
		return empty, err
	}

	page := qe.paginate(candidates, startIndex, pageSize)
	if len(page) == 0 {
		return empty, nil
	}

	resolved, err := tx.Records().GetMany(ctx, page)
	if err != nil {
		return empty, err
	}

	events := make(Events, 0, len(page))
	for _, id := range page {
		if event, ok := resolved[id]; ok {
			events = append(events, event.WithID(id))
		}
	}

	return events, nil
}

// candidates returns the ordered candidate ids for the filter.
func (qe QueryEngine) candidates(ctx context.Context, tx Tx, filter Filter) ([]ID, error) {
	if filter.IsEmpty() {
		return tx.Records().AllIDs(ctx)
	}

	if filter.MatchesNothing() {
		return nil, nil
	}

	var candidateSet IDSet

	for _, predicate := range filter.Predicates() {
		bucket, err := tx.Indexes().Lookup(ctx, predicate.Field(), predicate.NormalizedVal())
		if err != nil {
			return nil, err
		}

		if candidateSet == nil {
			candidateSet = bucket.Clone()
		} else {
			candidateSet = candidateSet.Intersect(bucket)
		}

		if candidateSet.Len() == 0 {
			return nil, nil
		}
	}

	return candidateSet.Sorted(), nil
}

// paginate cuts the page out of the candidates.
func (qe QueryEngine) paginate(candidates []ID, startIndex int, pageSize int) []ID {
	offset := 0
	if startIndex > FromBeginning {
		offset = startIndex - 1
	}

	if offset >= len(candidates) {
		return nil
	}

	end := len(candidates)
	if pageSize != Unbounded && pageSize < end-offset {
		end = offset + pageSize
	}

	return candidates[offset:end]
}
