/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metadata

import (
	"reflect"

	"github.com/suparena/entitymap/errors"
)

// EntityType is the cached structural metadata of one native entity type.
// It is immutable once its catalog publishes it.
type EntityType struct {
	catalog   *Catalog
	rt        reflect.Type
	id        string
	name      string
	namespace string
	table     string
	base      *EntityType

	members []EntityMember
	values  []*ValueMember
	byName  map[string]EntityMember

	softDelete *ValueMember
	seeds      []map[string]any
	indexes    []Index

	keyAtoms   []Atom
	valueAtoms []Atom
}

// ID is the stable type identifier: package path and type name.
func (t *EntityType) ID() string { return t.id }

func (t *EntityType) Name() string      { return t.name }
func (t *EntityType) Namespace() string { return t.namespace }

// Table is the resolved storage table name for this level.
func (t *EntityType) Table() string { return t.table }

// GoType is the native type the metadata was built from.
func (t *EntityType) GoType() reflect.Type { return t.rt }

// Base is the parent type, nil for an inheritance root.
func (t *EntityType) Base() *EntityType { return t.base }

func (t *EntityType) Catalog() *Catalog { return t.catalog }

func (t *EntityType) String() string { return t.name }

// Root walks up to the inheritance root.
func (t *EntityType) Root() *EntityType {
	r := t
	for r.base != nil {
		r = r.base
	}
	return r
}

// Chain lists the type and its ancestors, most-derived first.
func (t *EntityType) Chain() []*EntityType {
	var chain []*EntityType
	for c := t; c != nil; c = c.base {
		chain = append(chain, c)
	}
	return chain
}

// Lineage lists the root first, down to t.
func (t *EntityType) Lineage() []*EntityType {
	chain := t.Chain()
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// IsAssignableFrom reports whether an instance of other can be used where t
// is expected, that is whether t is other or one of its ancestors.
func (t *EntityType) IsAssignableFrom(other *EntityType) bool {
	for c := other; c != nil; c = c.base {
		if c == t {
			return true
		}
	}
	return false
}

// Related reports whether either type is assignable from the other.
func (t *EntityType) Related(other *EntityType) bool {
	return t.IsAssignableFrom(other) || other.IsAssignableFrom(t)
}

// Members returns every structural member, inherited ones first.
func (t *EntityType) Members() []EntityMember {
	return t.members
}

// Member looks a member up by name.
func (t *EntityType) Member(name string) (EntityMember, error) {
	if m, ok := t.byName[name]; ok {
		return m, nil
	}
	return nil, errors.NewMemberNotFoundError(t.name, name)
}

// Values returns all stored members in slot order.
func (t *EntityType) Values() []*ValueMember {
	return t.values
}

// Value looks a stored member up by name.
func (t *EntityType) Value(name string) (*ValueMember, error) {
	if m, ok := t.byName[name].(*ValueMember); ok {
		return m, nil
	}
	return nil, errors.NewMemberNotFoundError(t.name, name)
}

// MustValue is Value for names known at compile time.
func (t *EntityType) MustValue(name string) *ValueMember {
	m, err := t.Value(name)
	if err != nil {
		panic(err)
	}
	return m
}

// ValuesNamed returns the named members in order.
func (t *EntityType) ValuesNamed(names ...string) ([]*ValueMember, error) {
	out := make([]*ValueMember, 0, len(names))
	for _, n := range names {
		m, err := t.Value(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *EntityType) filter(keep func(*ValueMember) bool) []*ValueMember {
	var out []*ValueMember
	for _, m := range t.values {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// PrimaryKey returns the key members, declared by the inheritance root.
func (t *EntityType) PrimaryKey() []*ValueMember {
	return t.filter(func(m *ValueMember) bool { return m.key })
}

// RegularValues returns the stored members that are not part of the key.
func (t *EntityType) RegularValues() []*ValueMember {
	return t.filter(func(m *ValueMember) bool { return !m.key })
}

// ForeignKeys returns the members referencing another entity type.
func (t *EntityType) ForeignKeys() []*ValueMember {
	return t.filter(func(m *ValueMember) bool { return m.IsReference() })
}

// OwnValues returns the stored members declared at this level.
func (t *EntityType) OwnValues() []*ValueMember {
	return t.filter(func(m *ValueMember) bool { return m.declaring == t })
}

// OwnRegularValues returns the non-key members declared at this level.
func (t *EntityType) OwnRegularValues() []*ValueMember {
	return t.filter(func(m *ValueMember) bool { return m.declaring == t && !m.key })
}

// SoftDelete returns the logical-delete flag member, or nil.
func (t *EntityType) SoftDelete() *ValueMember { return t.softDelete }

// Seeds returns the fixed rows declared for this level.
func (t *EntityType) Seeds() []map[string]any { return t.seeds }

// Indexes returns the secondary indexes declared for this level.
func (t *EntityType) Indexes() []Index { return t.indexes }

// KeyAtoms is the atomized primary key.
func (t *EntityType) KeyAtoms() []Atom { return t.keyAtoms }

// ValueAtoms is the atomized form of every stored member.
func (t *EntityType) ValueAtoms() []Atom { return t.valueAtoms }
