package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/dharma/events-api-go/eventstore"
)

const (
	actionIncrementCounter = "increment_counter"
	actionDecrementCounter = "decrement_counter"
	actionSelectCounter    = "select_counter"
)

var errCounterUnderflow = errors.New("counter would drop below zero")

// counter is the row eventstore.TotalCounterName in the counters table.
// Increment and Decrement take the row lock, which serializes concurrent writers until their units end.
type counter struct {
	t *tx
}

func (c counter) Increment(ctx context.Context) error {
	if err := c.t.assertWritable(); err != nil {
		return err
	}

	sqlQuery, err := c.t.backend.buildIncrementCounterQuery()
	if err != nil {
		return err
	}

	_, err = c.t.exec(ctx, sqlQuery, actionIncrementCounter)

	return err
}

func (c counter) Decrement(ctx context.Context) error {
	if err := c.t.assertWritable(); err != nil {
		return err
	}

	sqlQuery, err := c.t.backend.buildDecrementCounterQuery()
	if err != nil {
		return err
	}

	rowsAffected, err := c.t.exec(ctx, sqlQuery, actionDecrementCounter)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return errors.Join(eventstore.ErrWritingFailed, errCounterUnderflow)
	}

	return nil
}

// Value returns 0 while the counter row does not exist yet.
func (c counter) Value(ctx context.Context) (int64, error) {
	sqlQuery, err := c.t.backend.buildSelectCounterQuery()
	if err != nil {
		return 0, err
	}

	rows, err := c.t.query(ctx, sqlQuery, actionSelectCounter)
	if err != nil {
		return 0, err
	}
	defer c.t.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return 0, translateDBError(eventstore.ErrQueryingFailed, rowsErr)
		}

		return 0, nil
	}

	var value int64
	if scanErr := rows.Scan(&value); scanErr != nil {
		return 0, errors.Join(eventstore.ErrScanningDBRowFailed, scanErr)
	}

	return value, nil
}

/***** query builders *****/

func (b *Backend) buildIncrementCounterQuery() (sqlQueryString, error) {
	upsertStmt := goqu.Dialect(dialectPostgres).
		Insert(b.countersTableName).
		Cols(colName, colValue).
		Vals(goqu.Vals{eventstore.TotalCounterName, 1}).
		OnConflict(goqu.DoUpdate(colName, goqu.Record{
			colValue: goqu.L("? + 1", goqu.T(b.countersTableName).Col(colValue)),
		}))

	return toSQL(upsertStmt)
}

func (b *Backend) buildDecrementCounterQuery() (sqlQueryString, error) {
	updateStmt := goqu.Dialect(dialectPostgres).
		Update(b.countersTableName).
		Set(goqu.Record{colValue: goqu.L(colValue + " - 1")}).
		Where(
			goqu.C(colName).Eq(eventstore.TotalCounterName),
			goqu.C(colValue).Gt(0),
		)

	return toSQL(updateStmt)
}

func (b *Backend) buildSelectCounterQuery() (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(b.countersTableName).
		Select(colValue).
		Where(goqu.C(colName).Eq(eventstore.TotalCounterName))

	return toSQL(selectStmt)
}
