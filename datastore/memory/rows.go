/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memory

import (
	"context"

	"github.com/suparena/entitymap/datastore"
)

// rowAccess implements datastore.Rows over whichever state read and write
// hand out: the committed tables or a transaction's copy.
type rowAccess struct {
	b     *Backend
	read  func(context.Context, func(*state) error) error
	write func(context.Context, func(*state) error) error
}

func (r rowAccess) Get(ctx context.Context, t *datastore.Table, key datastore.Key) (datastore.Row, error) {
	var row datastore.Row
	err := r.read(ctx, func(s *state) (err error) {
		row, err = s.get(t, key)
		return err
	})
	return row, err
}

func (r rowAccess) Scan(ctx context.Context, t *datastore.Table) ([]datastore.Row, error) {
	var rows []datastore.Row
	err := r.read(ctx, func(s *state) (err error) {
		rows, err = s.scan(t)
		return err
	})
	return rows, err
}

func (r rowAccess) Insert(ctx context.Context, t *datastore.Table, row datastore.Row) error {
	if r.b.insertError != nil {
		return r.b.insertError
	}
	return r.write(ctx, func(s *state) error {
		if err := s.insert(t, row); err != nil {
			return err
		}
		r.b.logger.Debug().Str("table", t.Name).Str("key", t.KeyOf(row).String()).Msg("insert")
		return nil
	})
}

func (r rowAccess) Update(ctx context.Context, t *datastore.Table, key datastore.Key, values datastore.Row) error {
	if r.b.updateError != nil {
		return r.b.updateError
	}
	return r.write(ctx, func(s *state) error {
		if err := s.update(t, key, values); err != nil {
			return err
		}
		r.b.logger.Debug().Str("table", t.Name).Str("key", key.String()).Int("columns", len(values)).Msg("update")
		return nil
	})
}

func (r rowAccess) Delete(ctx context.Context, t *datastore.Table, key datastore.Key) error {
	if r.b.deleteError != nil {
		return r.b.deleteError
	}
	return r.write(ctx, func(s *state) error {
		if err := s.delete(t, key); err != nil {
			return err
		}
		r.b.logger.Debug().Str("table", t.Name).Str("key", key.String()).Msg("delete")
		return nil
	})
}

func (r rowAccess) NextSequence(ctx context.Context, t *datastore.Table, column string) (int64, error) {
	var n int64
	err := r.write(ctx, func(s *state) (err error) {
		n, err = s.nextSequence(t, column)
		return err
	})
	return n, err
}
