/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/metadata"
)

// Engine binds a catalog to a backend and holds the engine-scope and
// type-scope hooks. It is safe for concurrent use; per unit-of-work state
// lives in a Session.
type Engine struct {
	backend datastore.Backend
	catalog *metadata.Catalog
	logger  zerolog.Logger

	showDeleted bool

	hooksMu sync.RWMutex
	hooks   []entity.Hook

	typeHooks *xsync.MapOf[*metadata.EntityType, []entity.Hook]
	tables    *xsync.MapOf[*metadata.EntityType, *datastore.Table]
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithShowDeleted sets the visibility of logically deleted rows for new
// sessions.
func WithShowDeleted(show bool) Option {
	return func(e *Engine) { e.showDeleted = show }
}

// New creates an engine over backend.
func New(backend datastore.Backend, catalog *metadata.Catalog, opts ...Option) *Engine {
	e := &Engine{
		backend:   backend,
		catalog:   catalog,
		logger:    zerolog.Nop(),
		typeHooks: xsync.NewMapOf[*metadata.EntityType, []entity.Hook](),
		tables:    xsync.NewMapOf[*metadata.EntityType, *datastore.Table](),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "engine").Str("backend", backend.Name()).Logger()
	return e
}

func (e *Engine) Backend() datastore.Backend { return e.backend }

func (e *Engine) Catalog() *metadata.Catalog { return e.catalog }

func (e *Engine) Logger() zerolog.Logger { return e.logger }

// Subscribe adds an engine-scope hook. Engine hooks run before type and
// instance hooks, for every operation.
func (e *Engine) Subscribe(h entity.Hook) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	hooks := make([]entity.Hook, len(e.hooks), len(e.hooks)+1)
	copy(hooks, e.hooks)
	e.hooks = append(hooks, h)
}

// SubscribeType adds a hook for operations on t and on every type derived
// from it.
func (e *Engine) SubscribeType(t *metadata.EntityType, h entity.Hook) {
	e.typeHooks.Compute(t, func(old []entity.Hook, _ bool) ([]entity.Hook, bool) {
		hooks := make([]entity.Hook, len(old), len(old)+1)
		copy(hooks, old)
		return append(hooks, h), false
	})
}

func (e *Engine) engineHooks() []entity.Hook {
	e.hooksMu.RLock()
	defer e.hooksMu.RUnlock()
	return e.hooks
}

// Table returns the storage schema of the level of t.
func (e *Engine) Table(t *metadata.EntityType) *datastore.Table {
	tbl, _ := e.tables.LoadOrCompute(t, func() *datastore.Table {
		return datastore.TableFor(t)
	})
	return tbl
}

// NewSession opens a unit of work.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e, ShowDeleted: e.showDeleted}
}

// Do runs fn in a session wrapped in a transaction, committing when fn
// returns nil and rolling back otherwise.
func (e *Engine) Do(ctx context.Context, fn func(s *Session) error) error {
	s := e.NewSession()
	if err := s.Begin(ctx); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		if s.InTransaction() {
			if rbErr := s.Rollback(ctx); rbErr != nil {
				e.logger.Warn().Err(rbErr).Msg("rollback failed")
			}
		}
		return err
	}
	return s.Commit(ctx)
}
