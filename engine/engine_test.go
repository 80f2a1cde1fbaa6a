/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/entitymap/datastore/memory"
	"github.com/suparena/entitymap/engine"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/predicate"
	"github.com/suparena/entitymap/scalar"
	"github.com/suparena/entitymap/testmodels"
)

type types struct {
	country, customer              *metadata.EntityType
	person, employee, manager      *metadata.EntityType
	vehicle, truck                 *metadata.EntityType
	order, orderLine, document     *metadata.EntityType
	region, nation, province, town *metadata.EntityType
	handler                        *metadata.EntityType
}

func (ts types) all() []*metadata.EntityType {
	return []*metadata.EntityType{
		ts.country, ts.customer, ts.person, ts.employee, ts.manager, ts.vehicle, ts.truck,
		ts.order, ts.orderLine, ts.document, ts.region, ts.nation, ts.province, ts.town, ts.handler,
	}
}

type fixture struct {
	types
	backend *memory.Backend
	engine  *engine.Engine
	session *engine.Session
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	cat := testmodels.Catalog()
	f := &fixture{
		types: types{
			country:   testmodels.MustType[testmodels.Country](cat),
			customer:  testmodels.MustType[testmodels.Customer](cat),
			person:    testmodels.MustType[testmodels.Person](cat),
			employee:  testmodels.MustType[testmodels.Employee](cat),
			manager:   testmodels.MustType[testmodels.Manager](cat),
			vehicle:   testmodels.MustType[testmodels.Vehicle](cat),
			truck:     testmodels.MustType[testmodels.Truck](cat),
			order:     testmodels.MustType[testmodels.Order](cat),
			orderLine: testmodels.MustType[testmodels.OrderLine](cat),
			document:  testmodels.MustType[testmodels.Document](cat),
			region:    testmodels.MustType[testmodels.Region](cat),
			nation:    testmodels.MustType[testmodels.Nation](cat),
			province:  testmodels.MustType[testmodels.Province](cat),
			town:      testmodels.MustType[testmodels.Town](cat),
			handler:   testmodels.MustType[testmodels.Handler](cat),
		},
		backend: memory.New(),
	}
	f.engine = engine.New(f.backend, cat, opts...)
	f.session = f.engine.NewSession()
	require.NoError(t, f.session.Setup(context.Background(), f.all()...))
	return f
}

func (f *fixture) addCustomer(t *testing.T, name, country string) *entity.Instance {
	t.Helper()
	c := entity.New(f.customer).MustSet("Name", name)
	if country != "" {
		require.NoError(t, c.Set("Country", entity.New(f.country).MustSet("Code", country)))
	}
	require.NoError(t, f.session.Insert(context.Background(), c))
	return c
}

func stringValue(t *testing.T, inst *entity.Instance, member string) string {
	t.Helper()
	v, err := inst.Value(member)
	require.NoError(t, err)
	s, _ := v.(string)
	return s
}

func TestCustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	c := entity.New(f.customer).MustSet("Name", "")
	err := s.Insert(ctx, c)
	require.True(t, errors.IsValidationFailure(err), "got %v", err)
	violations := errors.Violations(err)
	require.Len(t, violations, 1)
	assert.Equal(t, "Name cannot be empty", violations[0].Message)
	assert.False(t, c.IsPersisted())
	assert.Equal(t, 0, f.backend.Count("Customer"))

	c.MustSet("Name", "Ada")
	require.NoError(t, s.Insert(ctx, c))
	assert.True(t, c.IsPersisted())
	id, _ := c.Value("Id")
	assert.Equal(t, int64(1), id)

	found, err := s.Select(ctx, f.customer, engine.Query{Filter: predicate.MustLike("Name", "%da%")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Equal(c))
	assert.Equal(t, "Ada", stringValue(t, found[0], "Name"))

	c.MustSet("Name", "")
	err = s.Update(ctx, c)
	require.True(t, errors.IsValidationFailure(err), "got %v", err)
	require.Len(t, errors.Violations(err), 1)

	stored := entity.New(f.customer).MustSet("Id", id)
	require.NoError(t, s.Load(ctx, stored))
	assert.Equal(t, "Ada", stringValue(t, stored, "Name"), "rejected update must not reach storage")

	c.MustSet("Name", "Ada")
	require.NoError(t, s.Delete(ctx, c))
	assert.False(t, c.IsPersisted())

	byKey, err := s.Select(ctx, f.customer, engine.Query{Filter: predicate.Key(c)})
	require.NoError(t, err)
	assert.Empty(t, byKey)
	assert.True(t, errors.IsNotFound(s.Load(ctx, stored)))
}

func TestInsertReferencesAndKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	t.Run("SequenceKeys", func(t *testing.T) {
		a := f.addCustomer(t, "Ada", "US")
		b := f.addCustomer(t, "Bob", "")
		ida, _ := a.Value("Id")
		idb, _ := b.Value("Id")
		assert.Equal(t, int64(1), ida)
		assert.Equal(t, int64(2), idb)
	})

	t.Run("MissingReference", func(t *testing.T) {
		c := entity.New(f.customer).MustSet("Name", "Zed")
		require.NoError(t, c.Set("Country", entity.New(f.country).MustSet("Code", "XX")))
		err := s.Insert(ctx, c)
		assert.True(t, errors.IsConstraint(err), "got %v", err)
		id, _ := c.Value("Id")
		assert.Nil(t, id, "a generated key is cleared when the insert fails")
	})

	t.Run("UUIDKeys", func(t *testing.T) {
		cust := f.addCustomer(t, "Cleo", "FR")
		o := entity.New(f.order).MustSet("Total", 12.5)
		require.NoError(t, o.Set("Customer", cust))
		require.NoError(t, s.Insert(ctx, o))
		id, _ := o.Value("Id")
		require.IsType(t, uuid.UUID{}, id)
		assert.NotEqual(t, uuid.Nil, id)

		line := entity.New(f.orderLine).MustSet("Line", 1).MustSet("Product", "Tea").MustSet("Quantity", 3)
		require.NoError(t, line.Set("Order", o))
		require.NoError(t, s.Insert(ctx, line))

		lines, err := s.Select(ctx, f.orderLine, engine.Query{Filter: &predicate.ForeignKey{Member: "Order", Target: o}})
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, "Tea", stringValue(t, lines[0], "Product"))
	})

	t.Run("CompositeKeyChain", func(t *testing.T) {
		region := entity.New(f.region).MustSet("Code", "EU").MustSet("Name", "Europe")
		nation := entity.New(f.nation).MustSet("Code", "FR").MustSet("Name", "France")
		require.NoError(t, nation.Set("Region", region))
		province := entity.New(f.province).MustSet("Code", "IDF").MustSet("Name", "Ile-de-France")
		require.NoError(t, province.Set("Nation", nation))
		town := entity.New(f.town).MustSet("Name", "Paris").MustSet("Population", 2_100_000)
		require.NoError(t, town.Set("Province", province))
		for _, inst := range []*entity.Instance{region, nation, province, town} {
			require.NoError(t, s.Insert(ctx, inst))
		}

		key := entity.New(f.town).MustSet("Name", "Paris")
		keyProvince := entity.New(f.province).MustSet("Code", "IDF")
		keyNation := entity.New(f.nation).MustSet("Code", "FR")
		require.NoError(t, keyNation.Set("Region", entity.New(f.region).MustSet("Code", "EU")))
		require.NoError(t, keyProvince.Set("Nation", keyNation))
		require.NoError(t, key.Set("Province", keyProvince))

		require.NoError(t, s.Load(ctx, key))
		pop, _ := key.Value("Population")
		assert.Equal(t, 2_100_000, pop)
		assert.True(t, key.Equal(town))
	})
}

func TestSelectOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	codes := func(insts []*entity.Instance) []string {
		var out []string
		for _, inst := range insts {
			out = append(out, stringValue(t, inst, "Code"))
		}
		return out
	}

	all, err := s.Select(ctx, f.country, engine.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "FR", "JP"}, codes(all), "seed rows come back in insertion order")

	sorted, err := s.Select(ctx, f.country, engine.Query{OrderBy: []engine.Sort{{Member: "Code"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"FR", "JP", "US"}, codes(sorted))

	top, err := s.Select(ctx, f.country, engine.Query{OrderBy: []engine.Sort{{Member: "Code", Descending: true}}, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "JP"}, codes(top))

	filtered, err := s.Select(ctx, f.country, engine.Query{Filter: predicate.Eq("Name", "Japan")})
	require.NoError(t, err)
	assert.Equal(t, []string{"JP"}, codes(filtered))

	projected, err := s.Select(ctx, f.country, engine.Query{Members: []string{"Code"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, projected, 1)
	assert.False(t, projected[0].IsLoaded())
	name, _ := projected[0].Value("Name")
	assert.Nil(t, name)

	_, err = s.Select(ctx, f.country, engine.Query{Filter: predicate.Eq("Capital", "Paris")})
	assert.True(t, errors.IsMemberNotFound(err), "got %v", err)
	_, err = s.Select(ctx, f.country, engine.Query{OrderBy: []engine.Sort{{Member: "Capital"}}})
	assert.True(t, errors.IsMemberNotFound(err), "got %v", err)

	first, err := s.First(ctx, f.country, engine.Query{Filter: predicate.Eq("Code", "FR")})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "France", stringValue(t, first, "Name"))
}

func TestUpdateMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	c := f.addCustomer(t, "Ada", "US")
	c.MustSet("Name", "Augusta").MustSet("Email", "ada@example.com")
	require.NoError(t, s.Update(ctx, c, "Email"))

	stored := c.Clone()
	require.NoError(t, s.Load(ctx, stored))
	assert.Equal(t, "Ada", stringValue(t, stored, "Name"))
	assert.Equal(t, "ada@example.com", stringValue(t, stored, "Email"))

	require.NoError(t, s.Update(ctx, c))
	require.NoError(t, s.Load(ctx, stored))
	assert.Equal(t, "Augusta", stringValue(t, stored, "Name"))

	missing := entity.New(f.customer).MustSet("Id", int64(99)).MustSet("Name", "Nobody")
	assert.True(t, errors.IsNotFound(s.Update(ctx, missing)))
	assert.True(t, errors.IsMemberNotFound(s.Update(ctx, c, "Nickname")))
}

func TestInheritance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	m := entity.New(f.manager).MustSet("Name", "Grace").MustSet("Salary", 100.0).MustSet("Budget", 5000.0)
	require.NoError(t, s.Insert(ctx, m))
	for _, table := range []string{"Person", "Employee", "Manager"} {
		assert.Equal(t, 1, f.backend.Count(table), table)
	}

	people, err := s.Select(ctx, f.person, engine.Query{})
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Same(t, f.manager, people[0].Type(), "reads resolve the most derived stored type")
	budget, _ := people[0].Value("Budget")
	assert.Equal(t, 5000.0, budget)

	e := entity.New(f.employee).MustSet("Name", "Linus").MustSet("Salary", 50.0)
	require.NoError(t, e.Set("Manager", m))
	require.NoError(t, s.Insert(ctx, e))

	rich, err := s.Select(ctx, f.employee, engine.Query{Filter: predicate.Gt("Salary", 60)})
	require.NoError(t, err)
	require.Len(t, rich, 1)
	assert.True(t, rich[0].Equal(m))

	byKey := entity.New(f.person).MustSet("Id", mustValue(t, e, "Id"))
	require.NoError(t, s.Load(ctx, byKey))
	assert.Equal(t, "Linus", stringValue(t, byKey, "Name"))

	m.MustSet("Budget", 7000.0).MustSet("Name", "Grace H.")
	require.NoError(t, s.Update(ctx, m))
	reloaded := entity.New(f.manager).MustSet("Id", mustValue(t, m, "Id"))
	require.NoError(t, s.Load(ctx, reloaded))
	assert.Equal(t, "Grace H.", stringValue(t, reloaded, "Name"))
	assert.Equal(t, 7000.0, mustValue(t, reloaded, "Budget"))
}

func mustValue(t *testing.T, inst *entity.Instance, member string) any {
	t.Helper()
	v, err := inst.Value(member)
	require.NoError(t, err)
	return v
}

func TestDeleteCascadesToDerivedTables(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	truck := entity.New(f.truck).MustSet("Plate", "AB-123").MustSet("Make", "Volvo").MustSet("Payload", 18.0)
	require.NoError(t, s.Insert(ctx, truck))
	car := entity.New(f.vehicle).MustSet("Plate", "CD-456").MustSet("Make", "Fiat")
	require.NoError(t, s.Insert(ctx, car))
	require.Equal(t, 2, f.backend.Count("Vehicle"))
	require.Equal(t, 1, f.backend.Count("Truck"))

	asVehicle := entity.New(f.vehicle).MustSet("Plate", "AB-123")
	require.NoError(t, s.Delete(ctx, asVehicle))
	assert.Equal(t, 0, f.backend.Count("Truck"), "no orphan row may remain in the derived table")
	assert.Equal(t, 1, f.backend.Count("Vehicle"))

	err := s.Delete(ctx, entity.New(f.vehicle).MustSet("Plate", "ZZ-000"))
	assert.True(t, errors.IsNotFound(err), "got %v", err)
}

func TestLogicalDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	p := entity.New(f.person).MustSet("Name", "Ada")
	require.NoError(t, s.Insert(ctx, p))
	m := entity.New(f.manager).MustSet("Name", "Grace").MustSet("Salary", 10.0)
	require.NoError(t, s.Insert(ctx, m))

	require.NoError(t, s.Delete(ctx, p))
	require.NoError(t, s.Delete(ctx, m))
	assert.Equal(t, 2, f.backend.Count("Person"), "logical delete keeps rows")
	assert.Equal(t, 1, f.backend.Count("Manager"))
	assert.Equal(t, true, mustValue(t, p, "Deleted"))

	visible, err := s.Select(ctx, f.person, engine.Query{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	s.ShowDeleted = true
	all, err := s.Select(ctx, f.person, engine.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	showing := newFixture(t, engine.WithShowDeleted(true)).session
	assert.True(t, showing.ShowDeleted)

	missing := entity.New(f.person).MustSet("Id", int64(42))
	assert.True(t, errors.IsNotFound(f.engine.NewSession().Delete(ctx, missing)))
}

func TestEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("ScopeOrder", func(t *testing.T) {
		f := newFixture(t)
		var calls []string
		record := func(name string) entity.Hook {
			return func(_ context.Context, ev *entity.Event) error {
				if ev.Operation == entity.OpInsert {
					calls = append(calls, name+" "+ev.Phase.String())
				}
				return nil
			}
		}
		f.engine.Subscribe(record("engine"))
		f.engine.SubscribeType(f.person, record("Person"))
		f.engine.SubscribeType(f.employee, record("Employee"))
		f.engine.SubscribeType(f.customer, record("Customer"))

		e := entity.New(f.employee).MustSet("Name", "Linus").MustSet("Salary", 1.0)
		e.Subscribe(record("instance"))
		require.NoError(t, f.session.Insert(ctx, e))
		assert.Equal(t, []string{
			"engine before", "Employee before", "Person before", "instance before",
			"engine after", "Employee after", "Person after", "instance after",
		}, calls)
	})

	t.Run("ValidationRunsBeforeInstanceHooks", func(t *testing.T) {
		f := newFixture(t)
		called := false
		c := entity.New(f.customer)
		c.Subscribe(func(context.Context, *entity.Event) error { called = true; return nil })
		assert.True(t, errors.IsValidationFailure(f.session.Insert(ctx, c)))
		assert.False(t, called)
	})

	t.Run("CancelSkipsWrite", func(t *testing.T) {
		f := newFixture(t)
		after := false
		f.engine.SubscribeType(f.customer, func(_ context.Context, ev *entity.Event) error {
			switch ev.Phase {
			case entity.Before:
				ev.Cancel = true
			case entity.After:
				after = true
			}
			return nil
		})
		c := entity.New(f.customer).MustSet("Name", "Ada")
		require.NoError(t, f.session.Insert(ctx, c))
		assert.Equal(t, 0, f.backend.Count("Customer"))
		assert.False(t, c.IsPersisted())
		assert.False(t, after, "a canceled operation has no after phase")
	})

	t.Run("CancelSubstitutesRead", func(t *testing.T) {
		f := newFixture(t)
		fake := entity.New(f.country).MustSet("Code", "XX").MustSet("Name", "Nowhere")
		f.engine.SubscribeType(f.country, func(_ context.Context, ev *entity.Event) error {
			if ev.Operation == entity.OpSelect && ev.Phase == entity.Before {
				ev.Result = []*entity.Instance{fake}
				ev.Cancel = true
			}
			return nil
		})
		got, err := f.session.Select(ctx, f.country, engine.Query{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Same(t, fake, got[0])
	})

	t.Run("HookErrorAborts", func(t *testing.T) {
		f := newFixture(t)
		boom := stderrors.New("boom")
		f.engine.Subscribe(func(_ context.Context, ev *entity.Event) error {
			if ev.Operation == entity.OpDelete {
				return boom
			}
			return nil
		})
		c := f.addCustomer(t, "Ada", "")
		assert.ErrorIs(t, f.session.Delete(ctx, c), boom)
		assert.Equal(t, 1, f.backend.Count("Customer"))
	})
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	var committed []*metadata.EntityType
	f.engine.Subscribe(func(_ context.Context, ev *entity.Event) error {
		if ev.Operation == entity.OpCommit && ev.Phase == entity.After {
			committed = ev.Types
		}
		return nil
	})

	require.NoError(t, s.Begin(ctx))
	assert.True(t, errors.IsConditionFailed(s.Begin(ctx)), "transactions are flat")
	f.addCustomer(t, "Ada", "")
	inside, err := s.Select(ctx, f.customer, engine.Query{})
	require.NoError(t, err)
	assert.Len(t, inside, 1, "a transaction reads its own writes")
	require.NoError(t, s.Rollback(ctx))
	assert.Equal(t, 0, f.backend.Count("Customer"))

	require.NoError(t, s.Begin(ctx))
	f.addCustomer(t, "Bob", "")
	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, 1, f.backend.Count("Customer"))
	assert.Equal(t, []*metadata.EntityType{f.customer}, committed)

	assert.True(t, errors.IsConditionFailed(s.Commit(ctx)))
	assert.True(t, errors.IsConditionFailed(s.Rollback(ctx)))

	boom := stderrors.New("boom")
	err = f.engine.Do(ctx, func(s *engine.Session) error {
		if err := s.Insert(ctx, entity.New(f.customer).MustSet("Name", "Cleo")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.backend.Count("Customer"))
}

func TestSelectGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	f.addCustomer(t, "Ada", "US")
	f.addCustomer(t, "Bob", "US")
	f.addCustomer(t, "Cleo", "FR")
	f.addCustomer(t, "Dan", "")

	groups, err := s.SelectGroup(ctx, f.customer, engine.GroupQuery{
		Aggregates: []engine.Aggregate{{Func: engine.Count}, {Func: engine.Max, Member: "Name"}},
		GroupBy:    []string{"Country"},
		OrderBy:    []engine.Sort{{Member: "count", Descending: true}},
	})
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, int64(2), groups[0]["count"])
	assert.Equal(t, "Bob", groups[0]["max_Name"])
	country, ok := groups[0]["Country"].(*entity.Instance)
	require.True(t, ok)
	assert.Equal(t, "US", stringValue(t, country, "Code"))

	for _, salary := range []float64{100, 200, 300} {
		e := entity.New(f.employee).MustSet("Name", "E").MustSet("Salary", salary)
		require.NoError(t, s.Insert(ctx, e))
	}
	totals, err := s.SelectGroup(ctx, f.employee, engine.GroupQuery{
		Aggregates: []engine.Aggregate{
			{Func: engine.Count, Member: "Salary"},
			{Func: engine.Sum, Member: "Salary"},
			{Func: engine.Avg, Member: "Salary", As: "mean"},
			{Func: engine.Min, Member: "Salary"},
			{Func: engine.Max, Member: "Salary"},
		},
		Filter: predicate.Ge("Salary", 0),
	})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, engine.Group{
		"count_Salary": int64(3),
		"sum_Salary":   600.0,
		"mean":         200.0,
		"min_Salary":   100.0,
		"max_Salary":   300.0,
	}, totals[0])

	_, err = s.SelectGroup(ctx, f.employee, engine.GroupQuery{Aggregates: []engine.Aggregate{{Func: engine.Sum, Member: "Name"}}})
	assert.Error(t, err)
	_, err = s.SelectGroup(ctx, f.employee, engine.GroupQuery{OrderBy: []engine.Sort{{Member: "nope"}}})
	assert.True(t, errors.IsMemberNotFound(err))

	unknown := engine.AggregateFunc(42)
	assert.Equal(t, "aggregate(42)", unknown.String())
	_, err = s.SelectGroup(ctx, f.employee, engine.GroupQuery{Aggregates: []engine.Aggregate{{Func: unknown}}})
	assert.EqualError(t, err, "unknown aggregate(42)")
	_, err = s.SelectGroup(ctx, f.employee, engine.GroupQuery{Aggregates: []engine.Aggregate{{Func: -1, Member: "Salary"}}})
	assert.EqualError(t, err, "unknown aggregate(-1)")
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.session

	keep := f.addCustomer(t, "Ada", "US")
	dup := f.addCustomer(t, "Ada L.", "US")

	o1 := entity.New(f.order)
	require.NoError(t, o1.Set("Customer", keep))
	require.NoError(t, s.Insert(ctx, o1))
	o2 := entity.New(f.order)
	require.NoError(t, o2.Set("Customer", dup))
	require.NoError(t, s.Insert(ctx, o2))
	line := entity.New(f.orderLine).MustSet("Line", 1).MustSet("Product", "Tea").MustSet("Quantity", 1)
	require.NoError(t, line.Set("Order", o2))
	require.NoError(t, s.Insert(ctx, line))

	require.NoError(t, s.Merge(ctx, keep, dup))
	assert.Equal(t, 1, f.backend.Count("Customer"))
	orders, err := s.Select(ctx, f.order, engine.Query{Filter: &predicate.ForeignKey{Member: "Customer", Target: keep}})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	require.NoError(t, s.Merge(ctx, o1, o2))
	assert.Equal(t, 1, f.backend.Count("Order"))
	lines, err := s.Select(ctx, f.orderLine, engine.Query{})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	owner, _ := lines[0].Ref("Order")
	assert.True(t, owner.Equal(o1), "rows keyed by the merged record move to the survivor")

	assert.True(t, errors.IsTypeMismatch(s.Merge(ctx, keep, o1)))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ada := f.addCustomer(t, "Ada Lovelace", "US")
	bob := f.addCustomer(t, "Bob", "FR")

	byName, err := f.session.Search(ctx, f.customer, "lovelace")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.True(t, byName[0].Equal(ada))

	byCountry, err := f.session.Search(ctx, f.customer, "france")
	require.NoError(t, err)
	require.Len(t, byCountry, 1)
	assert.True(t, byCountry[0].Equal(bob))

	both, err := f.session.Search(ctx, f.customer, "a")
	require.NoError(t, err)
	assert.Len(t, both, 2, "records found both ways appear once")
}

func TestSearchReferencingRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.addCustomer(t, "Ada Lovelace", "JP")
	f.addCustomer(t, "Bob", "FR")

	countries, err := f.session.Search(ctx, f.country, "Lovelace")
	require.NoError(t, err)
	require.Len(t, countries, 1)
	assert.Equal(t, "JP", stringValue(t, countries[0], "Code"))

	direct, err := f.session.Search(ctx, f.country, "Lovelace", engine.Direct())
	require.NoError(t, err)
	assert.Empty(t, direct)

	nobody, err := f.session.Search(ctx, f.country, "Zed")
	require.NoError(t, err)
	assert.Empty(t, nobody)
}

// typeless is a backend that cannot store Go types.
type typeless struct {
	*memory.Backend
}

func (typeless) Supports(k scalar.Kind) bool { return k != scalar.Invalid && k != scalar.Type }

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("Reseeds", func(t *testing.T) {
		f := newFixture(t)
		f.addCustomer(t, "Ada", "US")
		require.NoError(t, f.session.Setup(ctx, f.country, f.customer))
		assert.Equal(t, 3, f.backend.Count("Country"))
		assert.Equal(t, 0, f.backend.Count("Customer"))
	})

	t.Run("AncestorsIncluded", func(t *testing.T) {
		cat := testmodels.Catalog()
		b := memory.New()
		s := engine.New(b, cat).NewSession()
		require.NoError(t, s.Setup(ctx, testmodels.MustType[testmodels.Manager](cat)))
		assert.Equal(t, []string{"Employee", "Manager", "Person"}, b.Tables())
	})

	t.Run("VerifyMemory", func(t *testing.T) {
		f := newFixture(t)
		assert.Empty(t, f.session.VerifySetup(ctx, f.all()...))
	})

	t.Run("VerifyCollectsEveryFailure", func(t *testing.T) {
		cat := testmodels.Catalog()
		rating := testmodels.MustType[testmodels.RatingSystem](cat)
		handler := testmodels.MustType[testmodels.Handler](cat)
		country := testmodels.MustType[testmodels.Country](cat)

		b := typeless{memory.New()}
		s := engine.New(b, cat).NewSession()
		require.NoError(t, s.Setup(ctx, country))

		errs := s.VerifySetup(ctx, handler, country, rating)
		require.Len(t, errs, 2, "handler has an unsupported column, rating system has no table")
		for _, err := range errs {
			assert.True(t, errors.IsUnsupportedTypeForBackend(err), "got %v", err)
		}
	})

	t.Run("RefusedInTransaction", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Begin(ctx))
		assert.True(t, errors.IsConditionFailed(f.session.Setup(ctx, f.country)))
		require.NoError(t, f.session.Rollback(ctx))
	})
}
