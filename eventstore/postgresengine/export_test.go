package postgresengine

import "github.com/dharma/events-api-go/eventstore"

var TranslateDBError = translateDBError

func (b *Backend) SchemaStatements() []string {
	return b.schemaStatements()
}

func (b *Backend) InsertRecordSQL(id eventstore.ID, event eventstore.Event) (string, error) {
	return b.buildInsertRecordQuery(id, event)
}

func (b *Backend) SelectRecordSQL(id eventstore.ID, lock bool) (string, error) {
	return b.buildSelectRecordQuery(id, lock)
}

func (b *Backend) SelectAllIDsSQL() (string, error) {
	return b.buildSelectAllIDsQuery()
}

func (b *Backend) InsertIndexSQL(id eventstore.ID, event eventstore.Event) (string, bool, error) {
	return b.buildInsertIndexQuery(id, event)
}

func (b *Backend) DeleteIndexSQL(id eventstore.ID, event eventstore.Event) (string, bool, error) {
	return b.buildDeleteIndexQuery(id, event)
}

func (b *Backend) LookupSQL(field eventstore.Field, normalizedVal string) (string, error) {
	return b.buildLookupQuery(field, normalizedVal)
}

func (b *Backend) IncrementCounterSQL() (string, error) {
	return b.buildIncrementCounterQuery()
}

func (b *Backend) DecrementCounterSQL() (string, error) {
	return b.buildDecrementCounterQuery()
}
