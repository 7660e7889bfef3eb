package eventstore

import (
	"maps"
	"slices"
)

// IDSet is an unordered set of ids, the content of one index bucket.
type IDSet map[ID]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...ID) IDSet {
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set
}

func (s IDSet) Contains(id ID) bool {
	_, ok := s[id]

	return ok
}

func (s IDSet) Len() int {
	return len(s)
}

// Clone returns an independent copy.
func (s IDSet) Clone() IDSet {
	if s == nil {
		return IDSet{}
	}

	return maps.Clone(s)
}

// Intersect returns the ids contained in s and in other. Neither input is modified.
func (s IDSet) Intersect(other IDSet) IDSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}

	result := make(IDSet, len(small))
	for id := range small {
		if large.Contains(id) {
			result[id] = struct{}{}
		}
	}

	return result
}

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []ID {
	return slices.Sorted(maps.Keys(s))
}
