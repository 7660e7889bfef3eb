// Package memengine provides an in-process eventstore.Backend.
//
// All state lives in maps guarded by one sync.RWMutex. Update units hold the write lock for their whole
// duration and keep an undo log, so a failing unit leaves no trace. View units hold the read lock and
// run concurrently with each other.
//
// The engine is meant for tests, demos and single-process deployments. Nothing is persisted.
//
// Usage:
//
//	backend, err := memengine.NewBackend(memengine.WithLogger(slog.Default()))
//	service, err := eventstore.NewService(backend)
package memengine
