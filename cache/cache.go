/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cache

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suparena/entitymap/engine"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/metadata"
)

// Event values private to the cache, carried from Before to After.
const (
	valueKey        = "entitymap.cache.key"
	valueGeneration = "entitymap.cache.generation"
)

type generation struct {
	family, clears uint64
}

type entryKey struct {
	typ         *metadata.EntityType
	showDeleted bool
	order       string
}

// Cache holds select results per entity type. All state sits behind one
// mutex.
type Cache struct {
	mu          sync.Mutex
	entries     map[entryKey][]*entity.Instance
	generations map[*metadata.EntityType]uint64
	// clears advances on Clear, invalidating every family at once.
	clears uint64

	metrics *Metrics
	logger  zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics sets the counters the cache reports to.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:     make(map[entryKey][]*entity.Instance),
		generations: make(map[*metadata.EntityType]uint64),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics()
	}
	c.logger = c.logger.With().Str("component", "cache").Logger()
	return c
}

// Attach subscribes the cache to every operation of e.
func (c *Cache) Attach(e *engine.Engine) {
	e.Subscribe(c.Hook)
}

// Metrics returns the counters of the cache.
func (c *Cache) Metrics() *Metrics {
	return c.metrics
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hook serves cached selects, stores fresh ones and invalidates on writes.
func (c *Cache) Hook(_ context.Context, ev *entity.Event) error {
	switch ev.Operation {
	case entity.OpSelect:
		if ev.Phase == entity.Before {
			c.lookup(ev)
		} else {
			c.store(ev)
		}
	case entity.OpInsert, entity.OpUpdate, entity.OpDelete:
		if ev.Phase == entity.After && ev.Type != nil {
			c.Invalidate(ev.Type)
		}
	case entity.OpCommit, entity.OpRollback, entity.OpSetup:
		if ev.Phase == entity.After {
			c.Invalidate(ev.Types...)
		}
	}
	return nil
}

// keyOf returns the cache key of a select event, or false if the select is
// not cacheable.
func keyOf(ev *entity.Event) (entryKey, bool) {
	q, ok := ev.Query.(engine.Query)
	if !ok || ev.Type == nil || !q.IsUnfiltered() {
		return entryKey{}, false
	}
	if inTx, _ := ev.Value(engine.ValueTransaction).(bool); inTx {
		return entryKey{}, false
	}
	show, _ := ev.Value(engine.ValueShowDeleted).(bool)
	var order strings.Builder
	for _, srt := range q.OrderBy {
		order.WriteString(srt.Member)
		if srt.Descending {
			order.WriteString(" desc")
		}
		order.WriteByte(',')
	}
	return entryKey{typ: ev.Type, showDeleted: show, order: order.String()}, true
}

func (c *Cache) lookup(ev *entity.Event) {
	key, ok := keyOf(ev)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, hit := c.entries[key]; hit {
		ev.Result = cloneAll(cached)
		ev.Cancel = true
		c.metrics.recordHit(key.typ.Name())
		c.logger.Debug().Str("entity_type", key.typ.Name()).Int("rows", len(cached)).Msg("cache hit")
		return
	}
	c.metrics.recordMiss(key.typ.Name())
	ev.SetValue(valueKey, key)
	ev.SetValue(valueGeneration, c.generationOf(key.typ))
}

func (c *Cache) store(ev *entity.Event) {
	key, ok := ev.Value(valueKey).(entryKey)
	if !ok {
		return
	}
	gen, _ := ev.Value(valueGeneration).(generation)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generationOf(key.typ) != gen {
		c.logger.Debug().Str("entity_type", key.typ.Name()).Msg("stale select result not cached")
		return
	}
	c.entries[key] = cloneAll(ev.Result)
}

// Invalidate drops every entry of the inheritance families of types and
// advances their generations.
func (c *Cache) Invalidate(types ...*metadata.EntityType) {
	if len(types) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	roots := map[*metadata.EntityType]bool{}
	for _, t := range types {
		root := t.Root()
		if roots[root] {
			continue
		}
		roots[root] = true
		c.generations[root]++
		c.metrics.recordInvalidation(root.Name())
	}
	for key := range c.entries {
		if roots[key.typ.Root()] {
			delete(c.entries, key)
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	clear(c.entries)
}

// generationOf must be called with mu held.
func (c *Cache) generationOf(t *metadata.EntityType) generation {
	return generation{family: c.generations[t.Root()], clears: c.clears}
}

func cloneAll(insts []*entity.Instance) []*entity.Instance {
	out := make([]*entity.Instance, len(insts))
	for n, inst := range insts {
		out[n] = inst.Clone()
	}
	return out
}
