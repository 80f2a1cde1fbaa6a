/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitymap

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suparena/entitymap/cache"
	"github.com/suparena/entitymap/config"
	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/datastore/ddb"
	"github.com/suparena/entitymap/datastore/memory"
	"github.com/suparena/entitymap/engine"
	"github.com/suparena/entitymap/logging"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/registry"
	"github.com/suparena/entitymap/validation"
)

// Store is an opened entitymap deployment: the catalog of the registered
// types, the engine over the configured backend and, when enabled, the
// result cache. It is safe for concurrent use.
type Store struct {
	cfg     *config.Config
	catalog *metadata.Catalog
	engine  *engine.Engine
	cache   *cache.Cache
	logger  zerolog.Logger
	closer  io.Closer

	mu    sync.RWMutex
	repos map[reflect.Type]any
}

type options struct {
	logger    *zerolog.Logger
	backend   datastore.Backend
	ddbClient ddb.Client
}

// Option adjusts how Open wires a Store.
type Option func(*options)

// WithLogger replaces the logger built from the log configuration.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = &l }
}

// WithBackend uses b instead of the configured backend.
func WithBackend(b datastore.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithDynamoDBClient makes the dynamodb backend use client instead of one
// built from the AWS settings.
func WithDynamoDBClient(client ddb.Client) Option {
	return func(o *options) { o.ddbClient = client }
}

// Open wires a Store from cfg over the types registered in r. Every
// registered type is built up front so derived types are known to reads of
// their bases.
func Open(ctx context.Context, cfg *config.Config, r *registry.Registry, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Store{cfg: cfg, repos: make(map[reflect.Type]any)}
	if o.logger != nil {
		s.logger = *o.logger
	} else {
		l, closer, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		s.logger, s.closer = l, closer
	}

	naming, err := metadata.ParseNaming(cfg.Naming)
	if err != nil {
		return nil, err
	}
	s.catalog = metadata.NewCatalog(r, metadata.WithNaming(naming))
	for _, rt := range r.Types() {
		if _, err := s.catalog.TypeOf(rt); err != nil {
			return nil, fmt.Errorf("build %s: %w", rt, err)
		}
	}
	if cfg.ApplicationRoot != "" {
		validation.ApplicationRoot = cfg.ApplicationRoot
	}

	backend := o.backend
	if backend == nil {
		if backend, err = s.openBackend(ctx, o.ddbClient); err != nil {
			return nil, err
		}
	}
	s.engine = engine.New(backend, s.catalog,
		engine.WithLogger(s.logger),
		engine.WithShowDeleted(cfg.ShowDeleted),
	)
	if cfg.Cache.Enabled {
		s.cache = cache.New(cache.WithLogger(s.logger))
		s.cache.Attach(s.engine)
	}

	s.logger.Info().
		Str("backend", backend.Name()).
		Int("types", len(s.catalog.Types())).
		Bool("cache", cfg.Cache.Enabled).
		Msg("entitymap opened")
	return s, nil
}

func (s *Store) openBackend(ctx context.Context, client ddb.Client) (datastore.Backend, error) {
	switch s.cfg.Backend {
	case config.BackendMemory:
		return memory.New().WithLogger(s.logger), nil
	case config.BackendDynamoDB:
		d := s.cfg.DynamoDB
		if client == nil {
			c, err := ddb.NewDynamoDBClient(ctx, d.AccessKey, d.SecretKey, d.Region, d.Endpoint)
			if err != nil {
				return nil, err
			}
			client = c
		}
		var scan []ddb.ScanOption
		if d.PageSize > 0 {
			scan = append(scan, ddb.WithPageSize(d.PageSize))
		}
		scan = append(scan, ddb.WithMaxRetries(d.MaxRetries), ddb.WithRetryBackoff(d.RetryBackoff))
		return ddb.New(client, d.Table, scan...).WithLogger(s.logger), nil
	}
	return nil, fmt.Errorf("unknown backend %q", s.cfg.Backend)
}

func (s *Store) Config() *config.Config { return s.cfg }

func (s *Store) Catalog() *metadata.Catalog { return s.catalog }

func (s *Store) Engine() *engine.Engine { return s.engine }

// Cache returns the result cache, or nil when caching is off.
func (s *Store) Cache() *cache.Cache { return s.cache }

func (s *Store) Logger() zerolog.Logger { return s.logger }

// Session opens a unit of work.
func (s *Store) Session() *engine.Session {
	return s.engine.NewSession()
}

// Setup recreates the storage of the given types, or of every registered
// type the backend can hold when none are given. Existing rows are lost.
func (s *Store) Setup(ctx context.Context, types ...*metadata.EntityType) error {
	if len(types) == 0 {
		types = s.storable()
	}
	return s.Session().Setup(ctx, types...)
}

// storable lists the registered types whose every column kind the backend
// supports.
func (s *Store) storable() []*metadata.EntityType {
	b := s.engine.Backend()
	var out []*metadata.EntityType
next:
	for _, t := range s.catalog.Types() {
		for _, lt := range t.Lineage() {
			for _, c := range s.engine.Table(lt).Columns {
				if !b.Supports(c.Kind) {
					s.logger.Warn().Str("entity_type", t.Name()).Str("column", c.Name).Msg("type skipped by setup")
					continue next
				}
			}
		}
		out = append(out, t)
	}
	return out
}

// VerifySetup reports every registered type the backend cannot hold.
func (s *Store) VerifySetup(ctx context.Context) []error {
	return s.Session().VerifySetup(ctx, s.catalog.Types()...)
}

// Close releases the log output opened for the store.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
