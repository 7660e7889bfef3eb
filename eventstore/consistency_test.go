package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dharma/events-api-go/eventstore"
)

func Test_GetConsistencyLevel(t *testing.T) {
	eventual := eventstore.WithEventualConsistency(context.Background())

	testCases := []struct {
		name     string
		ctx      context.Context
		expected eventstore.ConsistencyLevel
	}{
		{name: "nothing_set", ctx: context.Background(), expected: eventstore.StrongConsistency},
		{name: "eventual", ctx: eventual, expected: eventstore.EventualConsistency},
		{name: "strong_overrides_eventual", ctx: eventstore.WithStrongConsistency(eventual), expected: eventstore.StrongConsistency},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, eventstore.GetConsistencyLevel(tc.ctx))
		})
	}
}

func Test_ConsistencyLevel_String(t *testing.T) {
	assert.Equal(t, "strong", eventstore.StrongConsistency.String())
	assert.Equal(t, "eventual", eventstore.EventualConsistency.String())
	assert.Equal(t, "unknown", eventstore.ConsistencyLevel(42).String())
}
