package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	actionInsertRecord  = "insert_record"
	actionSelectRecord  = "select_record"
	actionReplaceRecord = "replace_record"
	actionDeleteRecord  = "delete_record"
	actionSelectIDs     = "select_ids"
	actionSelectRecords = "select_records"
)

type recordStore struct {
	t *tx
}

func (rs recordStore) Insert(ctx context.Context, event eventstore.Event) (eventstore.ID, error) {
	if err := rs.t.assertWritable(); err != nil {
		return "", err
	}

	if err := eventstore.Validate(event); err != nil {
		return "", err
	}

	id, err := rs.t.backend.newID()
	if err != nil {
		return "", errors.Join(eventstore.ErrWritingFailed, err)
	}

	sqlQuery, err := rs.t.backend.buildInsertRecordQuery(id, event)
	if err != nil {
		return "", err
	}

	if _, err = rs.t.exec(ctx, sqlQuery, actionInsertRecord); err != nil {
		return "", err
	}

	return id, nil
}

func (rs recordStore) Get(ctx context.Context, id eventstore.ID) (eventstore.Event, error) {
	sqlQuery, err := rs.t.backend.buildSelectRecordQuery(id, rs.t.writable)
	if err != nil {
		return eventstore.Event{}, err
	}

	rows, err := rs.t.query(ctx, sqlQuery, actionSelectRecord)
	if err != nil {
		return eventstore.Event{}, err
	}
	defer rs.t.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return eventstore.Event{}, translateDBError(eventstore.ErrQueryingFailed, rowsErr)
		}

		return eventstore.Event{}, eventstore.ErrNotFound
	}

	var payload []byte
	if scanErr := rows.Scan(&payload); scanErr != nil {
		return eventstore.Event{}, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
	}

	return unmarshalPayload(payload)
}

func (rs recordStore) Replace(ctx context.Context, id eventstore.ID, event eventstore.Event) error {
	if err := rs.t.assertWritable(); err != nil {
		return err
	}

	if err := eventstore.Validate(event); err != nil {
		return err
	}

	sqlQuery, err := rs.t.backend.buildReplaceRecordQuery(id, event)
	if err != nil {
		return err
	}

	rowsAffected, err := rs.t.exec(ctx, sqlQuery, actionReplaceRecord)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return eventstore.ErrNotFound
	}

	return nil
}

func (rs recordStore) Delete(ctx context.Context, id eventstore.ID) error {
	if err := rs.t.assertWritable(); err != nil {
		return err
	}

	sqlQuery, err := rs.t.backend.buildDeleteRecordQuery(id)
	if err != nil {
		return err
	}

	rowsAffected, err := rs.t.exec(ctx, sqlQuery, actionDeleteRecord)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return eventstore.ErrNotFound
	}

	return nil
}

func (rs recordStore) AllIDs(ctx context.Context) ([]eventstore.ID, error) {
	sqlQuery, err := rs.t.backend.buildSelectAllIDsQuery()
	if err != nil {
		return nil, err
	}

	rows, err := rs.t.query(ctx, sqlQuery, actionSelectIDs)
	if err != nil {
		return nil, err
	}
	defer rs.t.closeRows(ctx, rows)

	return scanIDs(rows)
}

func (rs recordStore) GetMany(ctx context.Context, ids []eventstore.ID) (map[eventstore.ID]eventstore.Event, error) {
	found := make(map[eventstore.ID]eventstore.Event, len(ids))

	if len(ids) == 0 {
		return found, nil
	}

	sqlQuery, err := rs.t.backend.buildSelectRecordsQuery(ids)
	if err != nil {
		return nil, err
	}

	rows, err := rs.t.query(ctx, sqlQuery, actionSelectRecords)
	if err != nil {
		return nil, err
	}
	defer rs.t.closeRows(ctx, rows)

	var id string
	var payload []byte

	for rows.Next() {
		if scanErr := rows.Scan(&id, &payload); scanErr != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}

		event, unmarshalErr := unmarshalPayload(payload)
		if unmarshalErr != nil {
			return nil, unmarshalErr
		}

		found[eventstore.ID(id)] = event
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, translateDBError(eventstore.ErrQueryingFailed, rowsErr)
	}

	return found, nil
}

// scanIDs reads a single text column of ids.
func scanIDs(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]eventstore.ID, error) {

	ids := make([]eventstore.ID, 0)
	var id string

	for rows.Next() {
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
		}

		ids = append(ids, eventstore.ID(id))
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, translateDBError(eventstore.ErrQueryingFailed, rowsErr)
	}

	return ids, nil
}

/***** query builders *****/

func (b *Backend) buildInsertRecordQuery(id eventstore.ID, event eventstore.Event) (sqlQueryString, error) {
	payload, err := marshalPayload(event)
	if err != nil {
		return "", err
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(b.recordsTableName).
		Cols(colID, colPayload).
		Vals(goqu.Vals{id.String(), goqu.L(castJsonb, payload)})

	return toSQL(insertStmt)
}

// buildSelectRecordQuery locks the row when the read happens within an Update unit.
func (b *Backend) buildSelectRecordQuery(id eventstore.ID, lock bool) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(b.recordsTableName).
		Select(colPayload).
		Where(goqu.C(colID).Eq(id.String()))

	if lock {
		selectStmt = selectStmt.ForUpdate(exp.Wait)
	}

	return toSQL(selectStmt)
}

func (b *Backend) buildReplaceRecordQuery(id eventstore.ID, event eventstore.Event) (sqlQueryString, error) {
	payload, err := marshalPayload(event)
	if err != nil {
		return "", err
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(b.recordsTableName).
		Set(goqu.Record{colPayload: goqu.L(castJsonb, payload)}).
		Where(goqu.C(colID).Eq(id.String()))

	return toSQL(updateStmt)
}

func (b *Backend) buildDeleteRecordQuery(id eventstore.ID) (sqlQueryString, error) {
	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(b.recordsTableName).
		Where(goqu.C(colID).Eq(id.String()))

	return toSQL(deleteStmt)
}

func (b *Backend) buildSelectAllIDsQuery() (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(b.recordsTableName).
		Select(colID).
		Order(goqu.I(colSequenceNumber).Asc())

	return toSQL(selectStmt)
}

func (b *Backend) buildSelectRecordsQuery(ids []eventstore.ID) (sqlQueryString, error) {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(b.recordsTableName).
		Select(colID, colPayload).
		Where(goqu.C(colID).In(values))

	return toSQL(selectStmt)
}

type sqlQueryString = string

// toSQL renders a goqu statement with inlined, escaped literals.
func toSQL(stmt interface {
	ToSQL() (string, []any, error)
}) (sqlQueryString, error) {

	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}
