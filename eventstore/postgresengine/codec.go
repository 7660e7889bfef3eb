package postgresengine

import (
	"errors"

	jsoniter "github.com/json-iterator/go"

	"github.com/dharma/events-api-go/eventstore"
)

var payloadJSON = jsoniter.ConfigFastest

// marshalPayload encodes an event for the payload column. The id lives in its own column.
func marshalPayload(event eventstore.Event) (string, error) {
	payload, err := payloadJSON.MarshalToString(event.WithID(""))
	if err != nil {
		return "", errors.Join(eventstore.ErrMarshalingFailed, err)
	}

	return payload, nil
}

func unmarshalPayload(payload []byte) (eventstore.Event, error) {
	var event eventstore.Event
	if err := payloadJSON.Unmarshal(payload, &event); err != nil {
		return eventstore.Event{}, errors.Join(eventstore.ErrMarshalingFailed, err)
	}

	return event.WithID(""), nil
}
