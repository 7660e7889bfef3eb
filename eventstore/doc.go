// Package eventstore provides the core of the event record API: the event record model,
// the storage component contracts and the query engine that evaluates filtered,
// paginated listings over secondary indexes.
//
// The storage backend is pluggable. A Backend hands out units of work (Tx) that expose
// the three storage components:
//   - RecordStore: the canonical id -> event record table
//   - IndexManager: per-field secondary indexes (value -> set of ids)
//   - Counter: the total number of live records
//
// Service is the composition root. Every mutation runs inside one Backend.Update unit, so
// the record, its index entries and the counter change together or not at all.
//
// Filters can be built programmatically or parsed from the "searchCriteria" string form:
//
//	filter := eventstore.BuildFilter().
//		Where(eventstore.FieldLocation, "Chicago,IL").
//		And(eventstore.FieldName, "Exclusive Event").
//		Finalize()
//
//	sameFilter := eventstore.ParseFilter("location:chicago,il;name:Exclusive Event")
//
//	events, err := service.List(ctx, filter, 1, 10)
//	if err != nil {
//		// handle error
//	}
//
// Two backends exist: memengine (in-process, map based) and postgresengine (PostgreSQL
// through pgx, database/sql or sqlx).
package eventstore
