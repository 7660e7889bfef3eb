package eventstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dharma/events-api-go/eventstore"
)

func Test_IDSet_Intersect(t *testing.T) {
	// arrange
	a := eventstore.NewIDSet("1", "2", "3", "4")
	b := eventstore.NewIDSet("3", "4", "5")

	// act
	result := a.Intersect(b)

	// assert
	assert.Equal(t, eventstore.NewIDSet("3", "4"), result)
	assert.Equal(t, 4, a.Len(), "inputs must stay untouched")
	assert.Equal(t, 3, b.Len(), "inputs must stay untouched")
}

func Test_IDSet_IntersectWithEmpty(t *testing.T) {
	assert.Equal(t, 0, eventstore.NewIDSet("1").Intersect(eventstore.IDSet{}).Len())
	assert.Equal(t, 0, eventstore.IDSet(nil).Intersect(eventstore.NewIDSet("1")).Len())
}

func Test_IDSet_Clone(t *testing.T) {
	// arrange
	original := eventstore.NewIDSet("1")

	// act
	clone := original.Clone()
	clone["2"] = struct{}{}

	// assert
	assert.False(t, original.Contains("2"))
	assert.NotNil(t, eventstore.IDSet(nil).Clone())
}

func Test_IDSet_Sorted(t *testing.T) {
	assert.Equal(t, []eventstore.ID{"a", "b", "c"}, eventstore.NewIDSet("c", "a", "b").Sorted())
}
