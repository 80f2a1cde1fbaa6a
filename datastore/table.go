/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"math"

	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Column describes one atomized member stored in a table.
type Column struct {
	Name      string
	Kind      scalar.Kind
	Key       bool
	NotNull   bool
	MaxLength int
	// Atom is the flattened member the column stores.
	Atom metadata.Atom
}

// Index is a secondary index over columns.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey requires the Columns of a row to match the key of a row in
// RefTable, unless any of them is nil.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Table is the storage schema of one inheritance level of an entity type:
// the atomized primary key followed by the atomized members declared at that
// level.
type Table struct {
	Name        string
	Type        *metadata.EntityType
	Columns     []Column
	Key         []string
	Indexes     []Index
	ForeignKeys []ForeignKey
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// KeyOf extracts the key of row.
func (t *Table) KeyOf(row Row) Key {
	k := Key{Columns: t.Key, Values: make([]any, len(t.Key))}
	for i, c := range t.Key {
		k.Values[i] = row[c]
	}
	return k
}

// Atoms returns the flattened members stored in the table, in column order.
func (t *Table) Atoms() []metadata.Atom {
	out := make([]metadata.Atom, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Atom
	}
	return out
}

type notNull interface{ RequiresValue() bool }

type maxLength interface{ MaxLength() (int, bool) }

// TableFor derives the table of the level of et. Key columns and columns of
// members carrying a value-required validator are not null; the tightest
// length validator bounds a string column. A derived level references its
// base table by key, and every reference member declared at the level gets a
// foreign key to the referenced type's table.
func TableFor(et *metadata.EntityType) *Table {
	t := &Table{Name: et.Table(), Type: et}

	own := et.OwnRegularValues()
	atoms := append([]metadata.Atom{}, et.KeyAtoms()...)
	for _, m := range own {
		for _, a := range et.ValueAtoms() {
			if a.Path[0] == m {
				atoms = append(atoms, a)
			}
		}
	}

	for _, a := range atoms {
		root := a.Path[0]
		c := Column{Name: a.Name, Kind: a.Member.Scalar(), Key: root.IsKey(), Atom: a}
		c.NotNull = c.Key
		for _, d := range metadata.Decorated[notNull](root) {
			if d.RequiresValue() {
				c.NotNull = true
			}
		}
		if c.Kind == scalar.String {
			limit := math.MaxInt
			for _, d := range metadata.Decorated[maxLength](a.Member) {
				if n, ok := d.MaxLength(); ok && n < limit {
					limit = n
				}
			}
			if limit != math.MaxInt {
				c.MaxLength = limit
			}
		}
		t.Columns = append(t.Columns, c)
		if c.Key {
			t.Key = append(t.Key, c.Name)
		}
	}

	for _, idx := range et.Indexes() {
		ix := Index{Name: idx.Name, Unique: idx.Unique}
		for _, name := range idx.Members {
			m := et.MustValue(name)
			for _, a := range et.ValueAtoms() {
				if a.Path[0] == m {
					ix.Columns = append(ix.Columns, a.Name)
				}
			}
		}
		t.Indexes = append(t.Indexes, ix)
	}

	if base := et.Base(); base != nil {
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Name:       "fk_" + t.Name + "_" + base.Table(),
			Columns:    t.Key,
			RefTable:   base.Table(),
			RefColumns: t.Key,
		})
	}
	for _, m := range et.OwnValues() {
		if !m.IsReference() {
			continue
		}
		fk := ForeignKey{Name: "fk_" + t.Name + "_" + m.Column(), RefTable: m.Referenced().Table()}
		for _, a := range et.ValueAtoms() {
			if a.Path[0] == m {
				fk.Columns = append(fk.Columns, a.Name)
			}
		}
		for _, a := range m.Referenced().KeyAtoms() {
			fk.RefColumns = append(fk.RefColumns, a.Name)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t
}
