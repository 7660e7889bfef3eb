package helper

import (
	"context"
	"sync"

	"github.com/dharma/events-api-go/eventstore"
)

// ContextualLoggerSpy captures the calls of the context-aware logger, including the context each call got.
type ContextualLoggerSpy struct {
	mu      sync.Mutex
	records []SpyContextualLogRecord
}

// SpyContextualLogRecord is one captured contextual log call.
type SpyContextualLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// NewContextualLoggerSpy creates an empty ContextualLoggerSpy.
func NewContextualLoggerSpy() *ContextualLoggerSpy {
	return &ContextualLoggerSpy{}
}

func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "debug", msg, args)
}

func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "info", msg, args)
}

func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "warn", msg, args)
}

func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "error", msg, args)
}

func (s *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyContextualLogRecord{
		Level:   level,
		Message: msg,
		Args:    append([]any(nil), args...),
		Context: ctx,
	})
}

// RecordsWithMessage returns a copy of the records at level with exactly this message.
func (s *ContextualLoggerSpy) RecordsWithMessage(level, message string) []SpyContextualLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found []SpyContextualLogRecord
	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			found = append(found, record)
		}
	}

	return found
}

// GetRecordCount returns the number of captured calls.
func (s *ContextualLoggerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

var _ eventstore.ContextualLogger = (*ContextualLoggerSpy)(nil)
