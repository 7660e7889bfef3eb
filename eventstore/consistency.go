package eventstore

import "context"

// ConsistencyLevel tells a Backend where a View unit may read from.
// Update units always run against the primary.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. A caller sees its own Create, Update and Delete. Default.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency lets a View unit read from a replica, if the Backend has one.
	// Get may miss a record created a moment ago and List may page over a slightly older set.
	EventualConsistency
)

var consistencyNames = map[ConsistencyLevel]string{
	StrongConsistency:   "strong",
	EventualConsistency: "eventual",
}

type consistencyKey struct{}

// WithStrongConsistency pins the View units run with ctx to the primary.
// Use it to override an EventualConsistency set further up the call chain.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyKey{}, StrongConsistency)
}

// WithEventualConsistency allows the View units run with ctx to read from a replica:
//
//	events, err := service.List(eventstore.WithEventualConsistency(ctx), filter, eventstore.FromBeginning, 20)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyKey{}, EventualConsistency)
}

// GetConsistencyLevel returns the level stored in ctx, StrongConsistency when none is set.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	level, ok := ctx.Value(consistencyKey{}).(ConsistencyLevel)
	if !ok {
		return StrongConsistency
	}

	return level
}

func (c ConsistencyLevel) String() string {
	if name, ok := consistencyNames[c]; ok {
		return name
	}

	return "unknown"
}
