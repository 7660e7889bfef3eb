package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	actionInsertIndex = "insert_index"
	actionDeleteIndex = "delete_index"
	actionLookupIndex = "lookup_index"
)

// indexManager keeps one (field, value, record_id) row per bucket membership.
// Rows of a deleted record also go away through the ON DELETE CASCADE of record_id.
type indexManager struct {
	t *tx
}

func (im indexManager) IndexInsert(ctx context.Context, id eventstore.ID, event eventstore.Event) error {
	if err := im.t.assertWritable(); err != nil {
		return err
	}

	sqlQuery, ok, err := im.t.backend.buildInsertIndexQuery(id, event)
	if err != nil || !ok {
		return err
	}

	_, err = im.t.exec(ctx, sqlQuery, actionInsertIndex)

	return err
}

func (im indexManager) IndexRemove(ctx context.Context, id eventstore.ID, event eventstore.Event) error {
	if err := im.t.assertWritable(); err != nil {
		return err
	}

	sqlQuery, ok, err := im.t.backend.buildDeleteIndexQuery(id, event)
	if err != nil || !ok {
		return err
	}

	_, err = im.t.exec(ctx, sqlQuery, actionDeleteIndex)

	return err
}

func (im indexManager) Lookup(
	ctx context.Context,
	field eventstore.Field,
	normalizedVal eventstore.FilterValString,
) (eventstore.IDSet, error) {

	sqlQuery, err := im.t.backend.buildLookupQuery(field, normalizedVal)
	if err != nil {
		return nil, err
	}

	rows, err := im.t.query(ctx, sqlQuery, actionLookupIndex)
	if err != nil {
		return nil, err
	}
	defer im.t.closeRows(ctx, rows)

	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	return eventstore.NewIDSet(ids...), nil
}

// indexRows lists the bucket memberships of event in the stable order of eventstore.IndexedFields.
func indexRows(event eventstore.Event) [][2]string {
	values := event.IndexValues()
	rows := make([][2]string, 0, len(values))

	for _, field := range eventstore.IndexedFields() {
		if val, ok := values[field]; ok {
			rows = append(rows, [2]string{string(field), val})
		}
	}

	return rows
}

/***** query builders *****/

// buildInsertIndexQuery reports false when the event has no indexed value at all.
func (b *Backend) buildInsertIndexQuery(id eventstore.ID, event eventstore.Event) (sqlQueryString, bool, error) {
	rows := indexRows(event)
	if len(rows) == 0 {
		return "", false, nil
	}

	vals := make([][]any, 0, len(rows))
	for _, row := range rows {
		vals = append(vals, goqu.Vals{row[0], row[1], id.String()})
	}

	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(b.indexTableName).
		Cols(colField, colValue, colRecordID).
		Vals(vals...).
		OnConflict(goqu.DoNothing())

	sqlQuery, err := toSQL(insertStmt)

	return sqlQuery, err == nil, err
}

// buildDeleteIndexQuery reports false when the event has no indexed value at all.
func (b *Backend) buildDeleteIndexQuery(id eventstore.ID, event eventstore.Event) (sqlQueryString, bool, error) {
	rows := indexRows(event)
	if len(rows) == 0 {
		return "", false, nil
	}

	memberships := make([]exp.Expression, 0, len(rows))
	for _, row := range rows {
		memberships = append(memberships, goqu.And(
			goqu.C(colField).Eq(row[0]),
			goqu.C(colValue).Eq(row[1]),
		))
	}

	deleteStmt := goqu.Dialect(dialectPostgres).
		Delete(b.indexTableName).
		Where(
			goqu.C(colRecordID).Eq(id.String()),
			goqu.Or(memberships...),
		)

	sqlQuery, err := toSQL(deleteStmt)

	return sqlQuery, err == nil, err
}

func (b *Backend) buildLookupQuery(field eventstore.Field, normalizedVal string) (sqlQueryString, error) {
	if !field.IsIndexed() {
		return "", errors.Join(eventstore.ErrBuildingQueryFailed, errUnindexedField)
	}

	selectStmt := goqu.Dialect(dialectPostgres).
		From(b.indexTableName).
		Select(colRecordID).
		Where(
			goqu.C(colField).Eq(string(field)),
			goqu.C(colValue).Eq(normalizedVal),
		)

	return toSQL(selectStmt)
}

var errUnindexedField = errors.New("field has no index")
