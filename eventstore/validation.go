package eventstore

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const tagWebURL = "weburl"

// webURLSchemes are the schemes accepted for Event.WebURL.
var webURLSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"file":  true,
}

var recordValidator = newRecordValidator()

// FieldViolation names one field that failed validation and the rule it broke.
type FieldViolation struct {
	Field string
	Rule  string
}

// ValidationError carries every FieldViolation of one record.
// It is always returned joined with ErrValidationFailed, so both errors.Is and errors.As work.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Rule))
	}

	return "invalid fields: " + strings.Join(parts, ", ")
}

// Validate checks the required fields and the well-formedness of optional ones.
func Validate(event Event) error {
	err := recordValidator.Struct(event)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Join(ErrValidationFailed, err)
	}

	validationErr := &ValidationError{Violations: make([]FieldViolation, 0, len(fieldErrs))}
	for _, fieldErr := range fieldErrs {
		validationErr.Violations = append(
			validationErr.Violations,
			FieldViolation{Field: fieldErr.Field(), Rule: fieldErr.Tag()},
		)
	}

	return errors.Join(ErrValidationFailed, validationErr)
}

func newRecordValidator() *validator.Validate {
	v := validator.New()

	// report violations with the json field names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}

		return name
	})

	// the tag is only registered here, so a failure is a programming error
	if err := v.RegisterValidation(tagWebURL, isWebURL); err != nil {
		panic(err)
	}

	return v
}

// isWebURL accepts absolute URLs with a known scheme. Network schemes also need a host.
func isWebURL(fl validator.FieldLevel) bool {
	raw := fl.Field().String()

	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !webURLSchemes[scheme] {
		return false
	}

	if scheme != "file" && parsed.Host == "" {
		return false
	}

	return true
}
