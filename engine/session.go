/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"
	"slices"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
)

// Session is a unit of work against an engine: it carries the logical-delete
// visibility and at most one open transaction. Transactions are flat. A
// Session is meant for use by one goroutine.
type Session struct {
	engine *Engine

	// ShowDeleted makes selects return logically deleted rows.
	ShowDeleted bool

	tx      datastore.Tx
	written []*metadata.EntityType
}

func (s *Session) Engine() *Engine { return s.engine }

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

// rows returns the open transaction or the backend itself.
func (s *Session) rows() datastore.Rows {
	if s.tx != nil {
		return s.tx
	}
	return s.engine.backend
}

// unit runs fn against the open transaction if there is one. Otherwise work
// spanning several rows runs in a transaction of its own.
func (s *Session) unit(ctx context.Context, multi bool, fn func(rows datastore.Rows) error) error {
	if s.tx != nil || !multi {
		return fn(s.rows())
	}
	tx, err := s.engine.backend.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.engine.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *Session) wrote(t *metadata.EntityType) {
	if s.tx != nil && !slices.Contains(s.written, t) {
		s.written = append(s.written, t)
	}
}

// Begin opens a transaction.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return errors.NewConditionFailedError("begin", "transaction already open")
	}
	ev := s.newEvent(entity.OpBegin, nil)
	if err := s.fire(ctx, ev, entity.Before); err != nil || ev.Cancel {
		return err
	}
	tx, err := s.engine.backend.Begin(ctx)
	if err != nil {
		return err
	}
	s.tx = tx
	s.written = nil
	return s.fire(ctx, ev, entity.After)
}

// Commit publishes the open transaction.
func (s *Session) Commit(ctx context.Context) error {
	return s.finish(ctx, entity.OpCommit)
}

// Rollback discards the open transaction.
func (s *Session) Rollback(ctx context.Context) error {
	return s.finish(ctx, entity.OpRollback)
}

func (s *Session) finish(ctx context.Context, op entity.Operation) error {
	if s.tx == nil {
		return errors.NewConditionFailedError(op.String(), "no transaction open")
	}
	ev := s.newEvent(op, nil)
	ev.Types = s.written
	if err := s.fire(ctx, ev, entity.Before); err != nil || ev.Cancel {
		return err
	}

	tx := s.tx
	s.tx, s.written = nil, nil
	var err error
	if op == entity.OpCommit {
		err = tx.Commit(ctx)
	} else {
		err = tx.Rollback(ctx)
	}
	if err != nil {
		return err
	}
	ev.SetValue(ValueTransaction, false)
	return s.fire(ctx, ev, entity.After)
}
