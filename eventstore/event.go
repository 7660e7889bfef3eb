package eventstore

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID identifies an event record. It is assigned by the RecordStore, is immutable and never reused.
type ID string

// NewID generates a fresh, time-ordered ID.
func NewID() (ID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return ID(id.String()), nil
}

// ParseID accepts the qualified ("event:<id>") or the bare textual form of an ID.
// It does not check that the ID was ever issued, lookups report ErrNotFound for unknown ids.
func ParseID(s string) ID {
	return ID(strings.TrimPrefix(strings.TrimSpace(s), IDNamespace+":"))
}

// String returns the bare ID.
func (id ID) String() string {
	return string(id)
}

// Qualified returns the "<namespace>:<id>" form handed to external callers.
func (id ID) Qualified() string {
	return IDNamespace + ":" + string(id)
}

/***** Field *****/

// Field names an event record attribute that can be used in filters.
type Field string

const (
	FieldName        Field = "name"
	FieldLocation    Field = "location"
	FieldIsPublic    Field = "isPublic"
	FieldGeoLocation Field = "geoLocation"
)

// IndexedFields returns the fields that have a secondary index, in a stable order.
func IndexedFields() []Field {
	return []Field{FieldName, FieldLocation, FieldIsPublic, FieldGeoLocation}
}

// IsIndexed reports whether the field has a secondary index and can be filtered on.
func (f Field) IsIndexed() bool {
	switch f {
	case FieldName, FieldLocation, FieldIsPublic, FieldGeoLocation:
		return true
	default:
		return false
	}
}

// NormalizeValue maps a raw value to the form used as index bucket key.
//   - location is lower-cased
//   - isPublic accepts every strconv.ParseBool spelling and becomes "true" or "false"
//   - every other field is taken verbatim
func (f Field) NormalizeValue(value string) string {
	switch f {
	case FieldLocation:
		return strings.ToLower(value)

	case FieldIsPublic:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return value
		}

		return strconv.FormatBool(b)

	default:
		return value
	}
}

/***** Event *****/

// Event is an event record.
//
// ID is assigned on Create, any ID supplied by the caller is ignored there.
// IsPublic is a pointer so that a missing value can be told apart from false.
type Event struct {
	ID          ID        `json:"id,omitempty"`
	Name        string    `json:"name" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Location    string    `json:"location" validate:"required"`
	DateTime    time.Time `json:"dateTime" validate:"required"`
	IsPublic    *bool     `json:"isPublic" validate:"required"`
	GeoLocation string    `json:"geoLocation,omitempty"`
	WebURL      string    `json:"webUrl,omitempty" validate:"omitempty,weburl"`
	Photo       string    `json:"photo,omitempty"`
}

// Events is an alias type for a slice of Event.
type Events = []Event

// Bool returns a pointer to b, handy for filling Event.IsPublic.
func Bool(b bool) *bool {
	return &b
}

// Normalized returns a copy with the location lower-cased.
// The copy does not share the IsPublic pointer with the receiver.
func (e Event) Normalized() Event {
	e.Location = strings.ToLower(e.Location)

	if e.IsPublic != nil {
		e.IsPublic = Bool(*e.IsPublic)
	}

	return e
}

// WithID returns a copy carrying the given id.
func (e Event) WithID(id ID) Event {
	e.ID = id

	return e
}

// IndexValues returns the normalized bucket key per indexed field.
// Fields without a value (an absent geoLocation) are left out, they are not indexed.
func (e Event) IndexValues() map[Field]string {
	values := make(map[Field]string, len(IndexedFields()))

	if e.Name != "" {
		values[FieldName] = FieldName.NormalizeValue(e.Name)
	}

	if e.Location != "" {
		values[FieldLocation] = FieldLocation.NormalizeValue(e.Location)
	}

	if e.IsPublic != nil {
		values[FieldIsPublic] = strconv.FormatBool(*e.IsPublic)
	}

	if e.GeoLocation != "" {
		values[FieldGeoLocation] = FieldGeoLocation.NormalizeValue(e.GeoLocation)
	}

	return values
}
