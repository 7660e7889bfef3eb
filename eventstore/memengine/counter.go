package memengine

import (
	"context"
	"errors"

	"github.com/dharma/events-api-go/eventstore"
)

var errCounterUnderflow = errors.New("counter would drop below zero")

type counter struct {
	t *tx
}

func (c counter) Increment(_ context.Context) error {
	return c.add(1)
}

func (c counter) Decrement(_ context.Context) error {
	return c.add(-1)
}

func (c counter) Value(_ context.Context) (int64, error) {
	return c.t.backend.total, nil
}

func (c counter) add(delta int64) error {
	if err := c.t.assertWritable(); err != nil {
		return err
	}

	b := c.t.backend

	if b.total+delta < 0 {
		return errors.Join(eventstore.ErrWritingFailed, errCounterUnderflow)
	}

	b.total += delta

	c.t.onRollback(func() {
		b.total -= delta
	})

	return nil
}
