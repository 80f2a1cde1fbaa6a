/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metadata

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

type stubReflector map[reflect.Type]*TypeReport

func (s stubReflector) Describe(rt reflect.Type) (*TypeReport, error) {
	if r, ok := s[rt]; ok {
		return r, nil
	}
	return nil, errors.NewInvalidStructuralTypeError(rt.String(), "not registered")
}

type (
	region   struct{}
	country  struct{}
	city     struct{}
	person   struct{}
	employee struct{}
	manager  struct{}
	loopA    struct{}
	loopB    struct{}
	orphan   struct{}
)

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func geoReflector() stubReflector {
	return stubReflector{
		typeOf[region](): {
			Members: []MemberReport{
				{Name: "Code", Kind: MemberField, Key: true, Scalar: scalar.String},
				{Name: "Label", Kind: MemberProperty, Scalar: scalar.String},
			},
		},
		typeOf[country](): {
			Members: []MemberReport{
				{Name: "Region", Kind: MemberField, Key: true, Ref: typeOf[region]()},
				{Name: "Iso", Kind: MemberField, Key: true, Scalar: scalar.String},
			},
		},
		typeOf[city](): {
			Table: "cities",
			Members: []MemberReport{
				{Name: "Country", Kind: MemberField, Key: true, Ref: typeOf[country]()},
				{Name: "Name", Kind: MemberField, Key: true, Scalar: scalar.String},
				{Name: "Population", Kind: MemberField, Scalar: scalar.Int64},
				{Name: "Describe", Kind: MemberMethod},
			},
		},
		typeOf[person](): {
			SoftDelete: "Deleted",
			Members: []MemberReport{
				{Name: "Id", Kind: MemberField, Key: true, AutoGenerated: true, Scalar: scalar.Int64},
				{Name: "Name", Kind: MemberField, Scalar: scalar.String},
				{Name: "Deleted", Kind: MemberField, Scalar: scalar.Bool},
				{Name: "Home", Kind: MemberField, Ref: typeOf[city](), Column: "HomeCity"},
			},
		},
		typeOf[employee](): {
			Base: typeOf[person](),
			Members: []MemberReport{
				{Name: "Salary", Kind: MemberField, Scalar: scalar.Float},
				{Name: "Boss", Kind: MemberField, Ref: typeOf[employee]()},
				{Name: "Changed", Kind: MemberEvent},
			},
		},
		typeOf[manager](): {
			Base: typeOf[employee](),
			Members: []MemberReport{
				{Name: "Budget", Kind: MemberField, Scalar: scalar.Float},
			},
		},
	}
}

func TestTypeOfBuildsOnceAndCaches(t *testing.T) {
	cat := NewCatalog(geoReflector())

	first, err := cat.TypeOf(typeOf[city]())
	require.NoError(t, err)
	second, err := cat.TypeOf(reflect.TypeOf(&city{}))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "cities", first.Table())
	assert.Equal(t, "city", first.Name())

	byID, ok := cat.ByID(first.ID())
	require.True(t, ok)
	assert.Same(t, first, byID)

	// referenced types are published along with the requested one
	_, ok = cat.ByID(typeOf[region]().PkgPath() + ".region")
	assert.True(t, ok)
}

func TestTypeOfUnknownType(t *testing.T) {
	cat := NewCatalog(geoReflector())

	_, err := cat.TypeOf(typeOf[orphan]())
	assert.True(t, errors.IsInvalidStructuralType(err))
}

func TestMemberLookup(t *testing.T) {
	cat := NewCatalog(geoReflector())
	emp, err := TypeFor[employee](cat)
	require.NoError(t, err)

	m, err := emp.Member("Changed")
	require.NoError(t, err)
	assert.Equal(t, MemberEvent, m.Kind())

	_, err = emp.Value("Changed")
	assert.True(t, errors.IsMemberNotFound(err))

	_, err = emp.Member("Salery")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Salery")
}

func TestInheritanceSharesMembers(t *testing.T) {
	cat := NewCatalog(geoReflector())
	mgr, err := TypeFor[manager](cat)
	require.NoError(t, err)
	emp := mgr.Base()
	per := emp.Base()

	assert.Equal(t, []*EntityType{mgr, emp, per}, mgr.Chain())
	assert.Equal(t, []*EntityType{per, emp, mgr}, mgr.Lineage())
	assert.Same(t, per, mgr.Root())

	assert.Same(t, per.MustValue("Id"), mgr.MustValue("Id"))
	assert.Equal(t, per, mgr.MustValue("Id").DeclaringType())
	assert.Same(t, per.SoftDelete(), mgr.SoftDelete())

	names := func(ms []*ValueMember) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Name())
		}
		return out
	}
	assert.Equal(t, []string{"Id", "Name", "Deleted", "Home", "Salary", "Boss", "Budget"}, names(mgr.Values()))
	assert.Equal(t, []string{"Id"}, names(mgr.PrimaryKey()))
	assert.Equal(t, []string{"Budget"}, names(mgr.OwnRegularValues()))
	assert.Equal(t, []string{"Home", "Boss"}, names(mgr.ForeignKeys()))

	for i, m := range mgr.Values() {
		assert.Equal(t, i, m.Ordinal())
	}

	assert.True(t, per.IsAssignableFrom(mgr))
	assert.False(t, mgr.IsAssignableFrom(per))
	assert.True(t, mgr.Related(per))
}

func TestAtomizeDepths(t *testing.T) {
	cat := NewCatalog(geoReflector())

	reg, err := TypeFor[region](cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"Code"}, AtomNames(reg.KeyAtoms()))

	ctry, err := TypeFor[country](cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"Region_Code", "Iso"}, AtomNames(ctry.KeyAtoms()))

	cty, err := TypeFor[city](cat)
	require.NoError(t, err)
	assert.Equal(t, []string{"Country_Region_Code", "Country_Iso", "Name"}, AtomNames(cty.KeyAtoms()))

	per, err := TypeFor[person](cat)
	require.NoError(t, err)
	atoms, err := Atomize([]*ValueMember{per.MustValue("Home")})
	require.NoError(t, err)
	assert.Equal(t, []string{"HomeCity_Country_Region_Code", "HomeCity_Country_Iso", "HomeCity_Name"}, AtomNames(atoms))

	leaf := atoms[0]
	assert.Same(t, reg.MustValue("Code"), leaf.Member)
	require.Len(t, leaf.Path, 4)
	assert.Same(t, per.MustValue("Home"), leaf.Path[0])
}

func TestKeyCycleRejected(t *testing.T) {
	r := stubReflector{
		typeOf[loopA](): {Members: []MemberReport{
			{Name: "B", Kind: MemberField, Key: true, Ref: typeOf[loopB]()},
		}},
		typeOf[loopB](): {Members: []MemberReport{
			{Name: "A", Kind: MemberField, Key: true, Ref: typeOf[loopA]()},
		}},
	}
	cat := NewCatalog(r)

	_, err := cat.TypeOf(typeOf[loopA]())
	require.Error(t, err)
	assert.True(t, errors.IsInvalidStructuralType(err))
	assert.Empty(t, cat.Types(), "a failed build must not publish anything")
}

func TestBuildRules(t *testing.T) {
	tests := []struct {
		name   string
		report *TypeReport
	}{
		{"no key", &TypeReport{Members: []MemberReport{
			{Name: "Name", Kind: MemberField, Scalar: scalar.String},
		}}},
		{"duplicate", &TypeReport{Members: []MemberReport{
			{Name: "Id", Kind: MemberField, Key: true, Scalar: scalar.Int},
			{Name: "Id", Kind: MemberProperty, Scalar: scalar.Int},
		}}},
		{"no kind", &TypeReport{Members: []MemberReport{
			{Name: "Id", Kind: MemberField, Key: true},
		}}},
		{"soft delete not bool", &TypeReport{SoftDelete: "Id", Members: []MemberReport{
			{Name: "Id", Kind: MemberField, Key: true, Scalar: scalar.Int},
		}}},
		{"type-valued key", &TypeReport{Members: []MemberReport{
			{Name: "Kind", Kind: MemberField, Key: true, Scalar: scalar.Type},
		}}},
		{"unknown index member", &TypeReport{
			Members: []MemberReport{{Name: "Id", Kind: MemberField, Key: true, Scalar: scalar.Int}},
			Indexes: []Index{{Name: "ix", Members: []string{"Nope"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := NewCatalog(stubReflector{typeOf[orphan](): tt.report})
			_, err := cat.TypeOf(typeOf[orphan]())
			assert.True(t, errors.IsInvalidStructuralType(err), "got %v", err)
		})
	}
}

func TestDerivedTypeCannotDeclareKey(t *testing.T) {
	r := geoReflector()
	r[typeOf[orphan]()] = &TypeReport{
		Base:    typeOf[person](),
		Members: []MemberReport{{Name: "Extra", Kind: MemberField, Key: true, Scalar: scalar.Int}},
	}
	cat := NewCatalog(r)

	_, err := cat.TypeOf(typeOf[orphan]())
	assert.True(t, errors.IsInvalidStructuralType(err))
}

func TestNamingStrategies(t *testing.T) {
	ns := "github.com/acme/crm.model"
	assert.Equal(t, "Customer", NamingBare.tableName(ns, "Customer"))
	assert.Equal(t, "github_com_acme_crm_model_Customer", NamingQualified.tableName(ns, "Customer"))
	assert.Equal(t, "model_Customer", NamingNamespace.tableName(ns, "Customer"))

	n, err := ParseNaming("Qualified")
	require.NoError(t, err)
	assert.Equal(t, NamingQualified, n)

	_, err = ParseNaming("snake")
	assert.Error(t, err)
}

func TestCatalogScans(t *testing.T) {
	cat := NewCatalog(geoReflector())
	mgr, err := TypeFor[manager](cat)
	require.NoError(t, err)
	emp := mgr.Base()
	per := emp.Base()
	cty, err := TypeFor[city](cat)
	require.NoError(t, err)

	assert.Equal(t, []*EntityType{emp}, cat.SubTypes(per))
	assert.Equal(t, []*EntityType{emp, mgr}, cat.Descendants(per))

	inbound := cat.InboundForeignKeys(cty)
	require.Len(t, inbound, 1)
	assert.Equal(t, "Home", inbound[0].Name())

	// Boss references employee, so managers are reachable through it too
	inbound = cat.InboundForeignKeys(mgr)
	require.Len(t, inbound, 1)
	assert.Equal(t, "Boss", inbound[0].Name())
}

func TestConcurrentTypeOf(t *testing.T) {
	cat := NewCatalog(geoReflector())

	var wg sync.WaitGroup
	results := make([]*EntityType, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = TypeFor[manager](cat)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
