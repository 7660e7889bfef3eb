package eventstore

import (
	"slices"
	"strings"
)

type FilterValString = string

const (
	criteriaTermSeparator  = ';'
	criteriaFieldSeparator = ":"
	criteriaEscape         = '\\'
)

/***** Filter *****/

// Filter is a conjunction of FilterPredicate(s). The empty Filter matches every record.
type Filter struct {
	predicates []FilterPredicate
}

func (f Filter) Predicates() []FilterPredicate {
	return f.predicates
}

// IsEmpty reports whether the Filter has no predicates and thus matches every record.
func (f Filter) IsEmpty() bool {
	return len(f.predicates) == 0
}

// MatchesNothing reports whether at least one predicate can never be satisfied,
// because it names a field without an index or has an empty value.
func (f Filter) MatchesNothing() bool {
	return slices.ContainsFunc(f.predicates, func(fp FilterPredicate) bool {
		return !fp.IsSatisfiable()
	})
}

/***** FilterPredicate *****/

// FilterPredicate is one field:value equality term.
type FilterPredicate struct {
	field Field
	val   FilterValString
}

func P(field Field, val FilterValString) FilterPredicate {
	return FilterPredicate{field: field, val: val}
}

func (fp FilterPredicate) Field() Field {
	return fp.field
}

func (fp FilterPredicate) Val() FilterValString {
	return fp.val
}

// NormalizedVal returns the value in the form used as index bucket key.
func (fp FilterPredicate) NormalizedVal() FilterValString {
	return fp.field.NormalizeValue(fp.val)
}

// IsSatisfiable is false for unknown fields and empty values, such a predicate matches no record.
func (fp FilterPredicate) IsSatisfiable() bool {
	return fp.field.IsIndexed() && fp.val != ""
}

/***** FilterBuilder *****/

// FilterBuilder builds a Filter. All predicates are ANDed:
//
//   - empty filter
//   - (predicate)
//   - (predicate AND predicate...)
type FilterBuilder interface {
	// Where adds the first predicate.
	Where(field Field, val FilterValString) CompletedFilterBuilder

	// MatchingAnyEvent directly creates an empty Filter.
	MatchingAnyEvent() Filter
}

type CompletedFilterBuilder interface {
	// And adds one more predicate, duplicates are dropped.
	And(field Field, val FilterValString) CompletedFilterBuilder

	// Finalize returns the Filter.
	Finalize() Filter
}

// filterBuilder implements all the interfaces of FilterBuilder
type filterBuilder struct {
	filter Filter
}

// BuildFilter creates a FilterBuilder which must eventually be finalized with Finalize() or MatchingAnyEvent().
func BuildFilter() FilterBuilder {
	return filterBuilder{}
}

// Where adds the first predicate.
func (fb filterBuilder) Where(field Field, val FilterValString) CompletedFilterBuilder {
	return fb.And(field, val)
}

// And adds one more predicate, duplicates are dropped.
func (fb filterBuilder) And(field Field, val FilterValString) CompletedFilterBuilder {
	return fb.and(field, val)
}

func (fb filterBuilder) and(field Field, val FilterValString) filterBuilder {
	predicate := P(field, val)

	if !slices.Contains(fb.filter.predicates, predicate) {
		fb.filter.predicates = append(slices.Clip(fb.filter.predicates), predicate)
	}

	return fb
}

// MatchingAnyEvent directly creates an empty filter.
func (fb filterBuilder) MatchingAnyEvent() Filter {
	return Filter{}
}

// Finalize returns the Filter.
func (fb filterBuilder) Finalize() Filter {
	return fb.filter
}

/***** criteria parsing *****/

// ParseFilter parses the searchCriteria form "field:value;field:value".
//
// The value is the remainder of the term up to the next unescaped ';', taken verbatim
// (spaces and commas included). "\;" is a literal semicolon and "\\" a literal backslash.
// Empty terms are skipped. A term without ':' is kept as a predicate on an unknown field,
// so the Filter matches nothing instead of failing.
func ParseFilter(criteria string) Filter {
	builder := filterBuilder{}

	for _, term := range splitCriteriaTerms(criteria) {
		if strings.TrimSpace(term) == "" {
			continue
		}

		field, val, found := strings.Cut(term, criteriaFieldSeparator)
		if !found {
			builder = builder.and(Field(term), "")
			continue
		}

		builder = builder.and(Field(strings.TrimSpace(field)), val)
	}

	return builder.Finalize()
}

// splitCriteriaTerms splits at unescaped separators and resolves escapes.
func splitCriteriaTerms(criteria string) []string {
	terms := make([]string, 0, strings.Count(criteria, string(criteriaTermSeparator))+1)

	var current strings.Builder
	escaped := false

	for _, r := range criteria {
		switch {
		case escaped:
			if r != criteriaTermSeparator && r != criteriaEscape {
				current.WriteRune(criteriaEscape)
			}
			current.WriteRune(r)
			escaped = false

		case r == criteriaEscape:
			escaped = true

		case r == criteriaTermSeparator:
			terms = append(terms, current.String())
			current.Reset()

		default:
			current.WriteRune(r)
		}
	}

	if escaped {
		current.WriteRune(criteriaEscape)
	}

	return append(terms, current.String())
}
