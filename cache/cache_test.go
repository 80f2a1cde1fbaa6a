/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cache

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/entitymap/datastore/memory"
	"github.com/suparena/entitymap/engine"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/predicate"
	"github.com/suparena/entitymap/testmodels"
)

type fixture struct {
	cache    *Cache
	engine   *engine.Engine
	session  *engine.Session
	country  *metadata.EntityType
	customer *metadata.EntityType
	person   *metadata.EntityType
	manager  *metadata.EntityType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := testmodels.Catalog()
	f := &fixture{
		cache:    New(),
		country:  testmodels.MustType[testmodels.Country](cat),
		customer: testmodels.MustType[testmodels.Customer](cat),
		person:   testmodels.MustType[testmodels.Person](cat),
		manager:  testmodels.MustType[testmodels.Manager](cat),
	}
	f.engine = engine.New(memory.New(), cat)
	f.cache.Attach(f.engine)
	f.session = f.engine.NewSession()
	require.NoError(t, f.session.Setup(context.Background(), f.country, f.customer, f.manager))
	return f
}

func (f *fixture) selectAll(t *testing.T, et *metadata.EntityType) []*entity.Instance {
	t.Helper()
	out, err := f.session.Select(context.Background(), et, engine.Query{})
	require.NoError(t, err)
	return out
}

func names(t *testing.T, insts []*entity.Instance) []string {
	t.Helper()
	out := make([]string, 0, len(insts))
	for _, inst := range insts {
		v, err := inst.Value("Name")
		require.NoError(t, err)
		out = append(out, v.(string))
	}
	return out
}

func TestUnfilteredSelectIsServedFromCache(t *testing.T) {
	f := newFixture(t)

	first := f.selectAll(t, f.country)
	require.Len(t, first, 3)
	assert.Equal(t, 1, f.cache.Len())

	first[0].MustSet("Name", "changed by caller")
	second := f.selectAll(t, f.country)
	require.Len(t, second, 3)
	assert.NotContains(t, names(t, second), "changed by caller")
	assert.True(t, second[0].IsPersisted())

	m := f.cache.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits.WithLabelValues("Country")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.misses.WithLabelValues("Country")))
}

func TestWriteInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Empty(t, f.selectAll(t, f.customer))
	invalidations := f.cache.Metrics().invalidations.WithLabelValues("Customer")
	before := testutil.ToFloat64(invalidations)

	c := entity.New(f.customer).MustSet("Name", "Ada")
	require.NoError(t, f.session.Insert(ctx, c))
	assert.Equal(t, []string{"Ada"}, names(t, f.selectAll(t, f.customer)))

	c.MustSet("Name", "Grace")
	require.NoError(t, f.session.Update(ctx, c))
	assert.Equal(t, []string{"Grace"}, names(t, f.selectAll(t, f.customer)))

	require.NoError(t, f.session.Delete(ctx, c))
	assert.Empty(t, f.selectAll(t, f.customer))

	assert.Equal(t, before+3, testutil.ToFloat64(invalidations))
}

func TestWriteInvalidatesWholeFamily(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.Empty(t, f.selectAll(t, f.person))
	m := entity.New(f.manager).MustSet("Name", "Mia").MustSet("Salary", 10.0).MustSet("Budget", 10.0)
	require.NoError(t, f.session.Insert(ctx, m))

	people := f.selectAll(t, f.person)
	require.Len(t, people, 1)
	assert.Equal(t, f.manager, people[0].Type())
}

func TestVisibilityIsPartOfTheKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := entity.New(f.person).MustSet("Name", "Pat")
	require.NoError(t, f.session.Insert(ctx, p))
	require.NoError(t, f.session.Delete(ctx, p))

	assert.Empty(t, f.selectAll(t, f.person))
	f.session.ShowDeleted = true
	assert.Len(t, f.selectAll(t, f.person), 1)
	f.session.ShowDeleted = false
	assert.Empty(t, f.selectAll(t, f.person))
	assert.Equal(t, 2, f.cache.Len())
}

func TestOnlyUnfilteredSelectsAreCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	queries := []engine.Query{
		{Filter: predicate.Eq("Code", "FR")},
		{Members: []string{"Name"}},
		{Limit: 2},
	}
	for _, q := range queries {
		_, err := f.session.Select(ctx, f.country, q)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, f.cache.Len())

	_, err := f.session.Select(ctx, f.country, engine.Query{OrderBy: []engine.Sort{{Member: "Name"}}})
	require.NoError(t, err)
	_, err = f.session.Select(ctx, f.country, engine.Query{OrderBy: []engine.Sort{{Member: "Name", Descending: true}}})
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.Len())
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.Empty(t, f.selectAll(t, f.customer))

	require.NoError(t, f.session.Begin(ctx))
	require.NoError(t, f.session.Insert(ctx, entity.New(f.customer).MustSet("Name", "Ada")))
	assert.Len(t, f.selectAll(t, f.customer), 1, "reads inside a transaction bypass the cache")

	outside := f.engine.NewSession()
	got, err := outside.Select(ctx, f.customer, engine.Query{})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, f.session.Rollback(ctx))
	assert.Empty(t, f.selectAll(t, f.customer))

	require.NoError(t, f.session.Begin(ctx))
	require.NoError(t, f.session.Insert(ctx, entity.New(f.customer).MustSet("Name", "Bob")))
	require.NoError(t, f.session.Commit(ctx))
	assert.Equal(t, []string{"Bob"}, names(t, f.selectAll(t, f.customer)))
}

func TestSetupInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.session.Insert(ctx, entity.New(f.customer).MustSet("Name", "Ada")))
	require.Len(t, f.selectAll(t, f.customer), 1)

	require.NoError(t, f.session.Setup(ctx, f.customer))
	assert.Empty(t, f.selectAll(t, f.customer))
}

func TestStaleResultIsNotStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.cache

	ev := &entity.Event{Operation: entity.OpSelect, Type: f.customer, Query: engine.Query{}}
	ev.Phase = entity.Before
	require.NoError(t, c.Hook(ctx, ev))
	require.False(t, ev.Cancel)

	// a write lands between the read and the store
	c.Invalidate(f.customer)

	ev.Phase = entity.After
	ev.Result = []*entity.Instance{entity.New(f.customer).MustSet("Name", "stale")}
	require.NoError(t, c.Hook(ctx, ev))
	assert.Equal(t, 0, c.Len())

	ev = &entity.Event{Operation: entity.OpSelect, Type: f.customer, Query: engine.Query{}}
	require.NoError(t, c.Hook(ctx, ev))
	c.Clear()
	ev.Phase = entity.After
	require.NoError(t, c.Hook(ctx, ev))
	assert.Equal(t, 0, c.Len())
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	f.selectAll(t, f.country)
	f.selectAll(t, f.customer)
	require.Equal(t, 2, f.cache.Len())

	f.cache.Clear()
	assert.Equal(t, 0, f.cache.Len())
	assert.Len(t, f.selectAll(t, f.country), 3)
}

func TestMetricsRegistry(t *testing.T) {
	f := newFixture(t)
	f.selectAll(t, f.country)

	families, err := f.cache.Metrics().Registry().Gather()
	require.NoError(t, err)
	var found []string
	for _, mf := range families {
		found = append(found, mf.GetName())
	}
	assert.Contains(t, found, "entitymap_cache_misses_total")
}
