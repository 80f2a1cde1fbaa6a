/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package memory provides an in-memory relational implementation of datastore.Backend
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

// Backend keeps every table in process memory. Readers see the last
// committed snapshot; one writer at a time holds the write slot, either for a
// single statement or for the lifetime of a transaction.
type Backend struct {
	rowAccess

	mu      sync.RWMutex
	current *state
	writer  chan struct{}
	logger  zerolog.Logger

	insertError error
	updateError error
	deleteError error
}

var _ datastore.Backend = (*Backend)(nil)

// New creates an empty backend.
func New() *Backend {
	b := &Backend{
		current: newState(),
		writer:  make(chan struct{}, 1),
		logger:  zerolog.Nop(),
	}
	b.rowAccess = rowAccess{b: b, read: b.readCurrent, write: b.writeCurrent}
	return b
}

// WithLogger sets the logger used for statement tracing
func (b *Backend) WithLogger(l zerolog.Logger) *Backend {
	b.logger = l.With().Str("backend", b.Name()).Logger()
	return b
}

// WithInsertError makes Insert operations return an error
func (b *Backend) WithInsertError(err error) *Backend {
	b.insertError = err
	return b
}

// WithUpdateError makes Update operations return an error
func (b *Backend) WithUpdateError(err error) *Backend {
	b.updateError = err
	return b
}

// WithDeleteError makes Delete operations return an error
func (b *Backend) WithDeleteError(err error) *Backend {
	b.deleteError = err
	return b
}

func (b *Backend) Name() string { return "memory" }

// Supports accepts every kind, including Go types, which only an in-process
// store can hold.
func (b *Backend) Supports(k scalar.Kind) bool { return k != scalar.Invalid }

func (b *Backend) acquire(ctx context.Context) error {
	select {
	case b.writer <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backend) release() { <-b.writer }

func (b *Backend) readCurrent(_ context.Context, f func(*state) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return f(b.current)
}

func (b *Backend) writeCurrent(ctx context.Context, f func(*state) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	b.mu.Lock()
	defer b.mu.Unlock()
	return f(b.current)
}

func (b *Backend) TableExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := b.readCurrent(ctx, func(s *state) error {
		_, exists = s.tables[name]
		return nil
	})
	return exists, err
}

// DropTable removes the table and its rows; dropping a missing table is a no-op.
func (b *Backend) DropTable(ctx context.Context, name string) error {
	return b.writeCurrent(ctx, func(s *state) error {
		delete(s.tables, name)
		b.logger.Debug().Str("table", name).Msg("drop table")
		return nil
	})
}

func (b *Backend) CreateTable(ctx context.Context, t *datastore.Table) error {
	return b.writeCurrent(ctx, func(s *state) error {
		if _, exists := s.tables[t.Name]; exists {
			return errors.NewAlreadyExistsError("table", t.Name)
		}
		for _, c := range t.Columns {
			if !b.Supports(c.Kind) {
				return errors.NewUnsupportedTypeForBackendError(t.Type.Name(), b.Name(),
					errors.NewConstraintError(t.Name, c.Name, "unsupported column kind "+c.Kind.String()))
			}
		}
		s.tables[t.Name] = &table{
			schema: t,
			rows:   make(map[string]datastore.Row),
			seq:    make(map[string]int64),
		}
		b.logger.Debug().Str("table", t.Name).Int("columns", len(t.Columns)).Msg("create table")
		return nil
	})
}

// CreateIndexes enables the table's secondary indexes. Unique indexes are
// checked against the rows already present.
func (b *Backend) CreateIndexes(ctx context.Context, t *datastore.Table) error {
	return b.writeCurrent(ctx, func(s *state) error {
		tbl, err := s.table(t.Name)
		if err != nil {
			return err
		}
		for _, idx := range t.Indexes {
			if !idx.Unique {
				continue
			}
			seen := make(map[string]bool)
			for _, row := range tbl.rows {
				vals, complete := columnValues(row, idx.Columns)
				if !complete {
					continue
				}
				k := datastore.Key{Columns: idx.Columns, Values: vals}.String()
				if seen[k] {
					return errors.NewConstraintError(t.Name, idx.Name, "duplicate value")
				}
				seen[k] = true
			}
		}
		tbl.indexes = t.Indexes
		b.logger.Debug().Str("table", t.Name).Int("indexes", len(t.Indexes)).Msg("create indexes")
		return nil
	})
}

// CreateForeignKeys enables the table's foreign keys after checking the rows
// already present satisfy them.
func (b *Backend) CreateForeignKeys(ctx context.Context, t *datastore.Table) error {
	return b.writeCurrent(ctx, func(s *state) error {
		tbl, err := s.table(t.Name)
		if err != nil {
			return err
		}
		probe := &table{schema: tbl.schema, fks: t.ForeignKeys}
		for _, row := range tbl.rows {
			if err := s.checkReferences(probe, row, nil); err != nil {
				return err
			}
		}
		tbl.fks = t.ForeignKeys
		b.logger.Debug().Str("table", t.Name).Int("foreign_keys", len(t.ForeignKeys)).Msg("create foreign keys")
		return nil
	})
}

// Begin starts a transaction working on a private copy of every table. It
// holds the write slot until Commit or Rollback.
func (b *Backend) Begin(ctx context.Context) (datastore.Tx, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	b.mu.RLock()
	work := b.current.clone()
	b.mu.RUnlock()

	tx := &Tx{b: b, work: work}
	tx.rowAccess = rowAccess{b: b, read: tx.use, write: tx.use}
	b.logger.Debug().Msg("begin")
	return tx, nil
}

// Helper methods for testing

// Count returns the number of rows in a table, or 0 when it does not exist.
func (b *Backend) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.current.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Tables lists the existing tables by name.
func (b *Backend) Tables() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.current.tables))
	for name := range b.current.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Clear removes every table.
func (b *Backend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = newState()
}

// Tx is a memory transaction. It is meant for use by one goroutine.
type Tx struct {
	rowAccess

	b    *Backend
	mu   sync.Mutex
	work *state
	done bool
}

func (tx *Tx) use(_ context.Context, f func(*state) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return errors.NewConditionFailedError("statement", "transaction already finished")
	}
	return f(tx.work)
}

// Commit publishes the transaction's tables and releases the write slot.
func (tx *Tx) Commit(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return errors.NewConditionFailedError("commit", "transaction already finished")
	}
	tx.done = true
	tx.b.mu.Lock()
	tx.b.current = tx.work
	tx.b.mu.Unlock()
	tx.b.release()
	tx.b.logger.Debug().Msg("commit")
	return nil
}

// Rollback discards the transaction's changes and releases the write slot.
func (tx *Tx) Rollback(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return errors.NewConditionFailedError("rollback", "transaction already finished")
	}
	tx.done = true
	tx.work = nil
	tx.b.release()
	tx.b.logger.Debug().Msg("rollback")
	return nil
}
