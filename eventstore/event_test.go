package eventstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharma/events-api-go/eventstore"
	. "github.com/dharma/events-api-go/testutil/eventstore/helper"
)

func Test_Validate_AcceptsCompleteAndMandatoryEvents(t *testing.T) {
	assert.NoError(t, eventstore.Validate(FixtureMandatoryEvent()))
	assert.NoError(t, eventstore.Validate(FixtureCompleteEvent()))
}

//nolint:funlen
func Test_Validate_RejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(e *eventstore.Event)
		expectedField string
		expectedRule  string
	}{
		{
			name:          "missing_name",
			mutate:        func(e *eventstore.Event) { e.Name = "" },
			expectedField: "name",
			expectedRule:  "required",
		},
		{
			name:          "missing_description",
			mutate:        func(e *eventstore.Event) { e.Description = "" },
			expectedField: "description",
			expectedRule:  "required",
		},
		{
			name:          "missing_location",
			mutate:        func(e *eventstore.Event) { e.Location = "" },
			expectedField: "location",
			expectedRule:  "required",
		},
		{
			name:          "missing_date_time",
			mutate:        func(e *eventstore.Event) { e.DateTime = time.Time{} },
			expectedField: "dateTime",
			expectedRule:  "required",
		},
		{
			name:          "missing_is_public",
			mutate:        func(e *eventstore.Event) { e.IsPublic = nil },
			expectedField: "isPublic",
			expectedRule:  "required",
		},
		{
			name:          "web_url_with_unknown_scheme",
			mutate:        func(e *eventstore.Event) { e.WebURL = "htt://localhost/img" },
			expectedField: "webUrl",
			expectedRule:  "weburl",
		},
		{
			name:          "web_url_without_host",
			mutate:        func(e *eventstore.Event) { e.WebURL = "http://" },
			expectedField: "webUrl",
			expectedRule:  "weburl",
		},
		{
			name:          "relative_web_url",
			mutate:        func(e *eventstore.Event) { e.WebURL = "localhost/img" },
			expectedField: "webUrl",
			expectedRule:  "weburl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// arrange
			event := FixtureCompleteEvent()
			tt.mutate(&event)

			// act
			err := eventstore.Validate(event)

			// assert
			require.Error(t, err)
			assert.ErrorIs(t, err, eventstore.ErrValidationFailed)

			var validationErr *eventstore.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Contains(t, validationErr.Violations, eventstore.FieldViolation{
				Field: tt.expectedField,
				Rule:  tt.expectedRule,
			})
		})
	}
}

func Test_Validate_AcceptsKnownWebURLSchemes(t *testing.T) {
	for _, webURL := range []string{
		"http://localhost/img",
		"https://example.com/events?id=1",
		"ftp://files.example.com/flyer.pdf",
		"file:///tmp/flyer.png",
	} {
		t.Run(webURL, func(t *testing.T) {
			event := FixtureCompleteEvent()
			event.WebURL = webURL

			assert.NoError(t, eventstore.Validate(event))
		})
	}
}

func Test_Validate_ReportsAllViolations(t *testing.T) {
	// arrange
	event := eventstore.Event{WebURL: "htt://localhost/img"}

	// act
	err := eventstore.Validate(event)

	// assert
	var validationErr *eventstore.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Len(t, validationErr.Violations, 6)
}

func Test_Event_Normalized(t *testing.T) {
	// arrange
	event := FixtureCompleteEvent()

	// act
	normalized := event.Normalized()

	// assert
	assert.Equal(t, "chicago,il", normalized.Location)
	assert.Equal(t, "Chicago,IL", event.Location, "the receiver must stay untouched")
	assert.Equal(t, event.Name, normalized.Name)
	assert.Equal(t, event.GeoLocation, normalized.GeoLocation)

	*normalized.IsPublic = true
	assert.False(t, *event.IsPublic, "the copy must not share the IsPublic pointer")
}

func Test_Event_IndexValues(t *testing.T) {
	// arrange
	complete := FixtureCompleteEvent()
	mandatory := FixtureMandatoryEvent()

	// act
	completeValues := complete.IndexValues()
	mandatoryValues := mandatory.IndexValues()

	// assert
	assert.Equal(t, map[eventstore.Field]string{
		eventstore.FieldName:        "testEvent3",
		eventstore.FieldLocation:    "chicago,il",
		eventstore.FieldIsPublic:    "false",
		eventstore.FieldGeoLocation: "123,123",
	}, completeValues)

	assert.NotContains(t, mandatoryValues, eventstore.FieldGeoLocation, "absent values are not indexed")
	assert.Len(t, mandatoryValues, 3)
}

func Test_ID_QualifiedAndParse(t *testing.T) {
	// arrange
	id, err := eventstore.NewID()
	require.NoError(t, err)

	// act
	qualified := id.Qualified()

	// assert
	assert.Equal(t, "event:"+id.String(), qualified)
	assert.Equal(t, id, eventstore.ParseID(qualified))
	assert.Equal(t, id, eventstore.ParseID(id.String()))
	assert.Equal(t, id, eventstore.ParseID(" "+qualified+" "))
}

func Test_NewID_IsUnique(t *testing.T) {
	seen := make(map[eventstore.ID]struct{})

	for range 1000 {
		id, err := eventstore.NewID()
		require.NoError(t, err)

		_, duplicate := seen[id]
		require.False(t, duplicate)
		seen[id] = struct{}{}
	}
}
