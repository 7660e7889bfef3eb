// Package helper provides test doubles and fixtures for testing the event record core and its engines.
//
// The spies capture what the Service and the engines emit (slog records, metrics, spans) and offer
// fluent matchers for assertions. The fixtures are complete, valid event records.
package helper
