package helper

import (
	"time"

	"github.com/dharma/events-api-go/eventstore"
)

// FixtureDateTime is the dateTime carried by all fixtures.
func FixtureDateTime() time.Time {
	return time.Date(2017, time.September, 26, 20, 11, 43, 0, time.UTC)
}

// FixtureMandatoryEvent returns an event with only the required fields set.
func FixtureMandatoryEvent() eventstore.Event {
	return eventstore.Event{
		Name:        "testEvent3",
		Description: "test description",
		Location:    "Chicago,IL",
		DateTime:    FixtureDateTime(),
		IsPublic:    eventstore.Bool(false),
	}
}

// FixtureCompleteEvent returns an event with all fields set.
func FixtureCompleteEvent() eventstore.Event {
	event := FixtureMandatoryEvent()
	event.GeoLocation = "123,123"
	event.WebURL = "http://localhost/img"
	event.Photo = "img"

	return event
}

// FixtureEvent returns a complete event with the given name, location and visibility.
func FixtureEvent(name, location string, isPublic bool) eventstore.Event {
	event := FixtureCompleteEvent()
	event.Name = name
	event.Location = location
	event.IsPublic = eventstore.Bool(isPublic)

	return event
}

// FixtureEventMissingDescription returns an event without the required description.
func FixtureEventMissingDescription() eventstore.Event {
	event := FixtureCompleteEvent()
	event.Description = ""

	return event
}

// FixtureEventWithMalformedWebURL returns an event with a webUrl that has an unknown scheme.
func FixtureEventWithMalformedWebURL() eventstore.Event {
	event := FixtureCompleteEvent()
	event.WebURL = "htt://localhost/img"

	return event
}
