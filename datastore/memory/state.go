/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package memory

import (
	"fmt"
	"slices"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

type table struct {
	schema  *datastore.Table
	rows    map[string]datastore.Row
	order   []string
	indexes []datastore.Index
	fks     []datastore.ForeignKey
	seq     map[string]int64
}

func (t *table) clone() *table {
	out := &table{
		schema:  t.schema,
		rows:    make(map[string]datastore.Row, len(t.rows)),
		order:   slices.Clone(t.order),
		indexes: t.indexes,
		fks:     t.fks,
		seq:     make(map[string]int64, len(t.seq)),
	}
	for k, r := range t.rows {
		out.rows[k] = r
	}
	for k, v := range t.seq {
		out.seq[k] = v
	}
	return out
}

// state is one snapshot of every table. Stored rows are never mutated in
// place, so a clone only copies the maps.
type state struct {
	tables map[string]*table
}

func newState() *state {
	return &state{tables: make(map[string]*table)}
}

func (s *state) clone() *state {
	out := newState()
	for name, t := range s.tables {
		out.tables[name] = t.clone()
	}
	return out
}

func (s *state) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("memory: table %q does not exist", name)
	}
	return t, nil
}

func (s *state) get(t *datastore.Table, key datastore.Key) (datastore.Row, error) {
	tbl, err := s.table(t.Name)
	if err != nil {
		return nil, err
	}
	row, ok := tbl.rows[key.String()]
	if !ok {
		return nil, errors.NewNotFoundError(t.Name, key.String())
	}
	return row.Clone(), nil
}

func (s *state) scan(t *datastore.Table) ([]datastore.Row, error) {
	tbl, err := s.table(t.Name)
	if err != nil {
		return nil, err
	}
	out := make([]datastore.Row, 0, len(tbl.order))
	for _, k := range tbl.order {
		out = append(out, tbl.rows[k].Clone())
	}
	return out, nil
}

func (s *state) insert(t *datastore.Table, values datastore.Row) error {
	tbl, err := s.table(t.Name)
	if err != nil {
		return err
	}
	row, err := shape(tbl.schema, values)
	if err != nil {
		return err
	}
	if err := datastore.CheckRow(tbl.schema, row); err != nil {
		return err
	}
	k := tbl.schema.KeyOf(row).String()
	if _, dup := tbl.rows[k]; dup {
		return errors.NewAlreadyExistsError(t.Name, k)
	}
	if err := s.checkUnique(tbl, row, ""); err != nil {
		return err
	}
	if err := s.checkReferences(tbl, row, nil); err != nil {
		return err
	}
	tbl.rows[k] = row
	tbl.order = append(tbl.order, k)
	return nil
}

func (s *state) update(t *datastore.Table, key datastore.Key, values datastore.Row) error {
	tbl, err := s.table(t.Name)
	if err != nil {
		return err
	}
	k := key.String()
	old, ok := tbl.rows[k]
	if !ok {
		return errors.NewNotFoundError(t.Name, k)
	}
	row := old.Clone()
	for name, v := range values {
		c, ok := tbl.schema.Column(name)
		if !ok {
			return errors.NewConstraintError(t.Name, name, "unknown column")
		}
		if c.Key && !scalar.Equal(old[name], v) {
			return errors.NewConstraintError(t.Name, name, "key columns cannot change")
		}
		row[name] = v
	}
	if err := datastore.CheckRow(tbl.schema, row); err != nil {
		return err
	}
	if err := s.checkUnique(tbl, row, k); err != nil {
		return err
	}
	if err := s.checkReferences(tbl, row, old); err != nil {
		return err
	}
	tbl.rows[k] = row
	return nil
}

func (s *state) delete(t *datastore.Table, key datastore.Key) error {
	tbl, err := s.table(t.Name)
	if err != nil {
		return err
	}
	k := key.String()
	if _, ok := tbl.rows[k]; !ok {
		return errors.NewNotFoundError(t.Name, k)
	}
	if err := s.checkReferenced(tbl, k); err != nil {
		return err
	}
	delete(tbl.rows, k)
	tbl.order = slices.DeleteFunc(tbl.order, func(o string) bool { return o == k })
	return nil
}

// nextSequence never hands out a value already present in the column, so
// rows written with explicit values (seeds) do not collide.
func (s *state) nextSequence(t *datastore.Table, column string) (int64, error) {
	tbl, err := s.table(t.Name)
	if err != nil {
		return 0, err
	}
	if _, ok := tbl.schema.Column(column); !ok {
		return 0, errors.NewConstraintError(t.Name, column, "unknown column")
	}
	next := tbl.seq[column]
	for _, row := range tbl.rows {
		if n, ok := asInt64(row[column]); ok && n > next {
			next = n
		}
	}
	next++
	tbl.seq[column] = next
	return next, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// shape copies values into a row holding exactly the table's columns.
func shape(schema *datastore.Table, values datastore.Row) (datastore.Row, error) {
	row := make(datastore.Row, len(schema.Columns))
	for name := range values {
		if _, ok := schema.Column(name); !ok {
			return nil, errors.NewConstraintError(schema.Name, name, "unknown column")
		}
	}
	for _, c := range schema.Columns {
		row[c.Name] = values[c.Name]
	}
	return row, nil
}

func (s *state) checkUnique(tbl *table, row datastore.Row, self string) error {
	for _, idx := range tbl.indexes {
		if !idx.Unique {
			continue
		}
		vals, complete := columnValues(row, idx.Columns)
		if !complete {
			continue
		}
		for k, other := range tbl.rows {
			if k == self {
				continue
			}
			if ov, ok := columnValues(other, idx.Columns); ok && equalAll(vals, ov) {
				return errors.NewConstraintError(tbl.schema.Name, idx.Name, "duplicate value")
			}
		}
	}
	return nil
}

// checkReferences verifies every foreign key whose columns are all set and
// changed relative to old.
func (s *state) checkReferences(tbl *table, row, old datastore.Row) error {
	for _, fk := range tbl.fks {
		vals, complete := columnValues(row, fk.Columns)
		if !complete {
			continue
		}
		if old != nil {
			if ov, ok := columnValues(old, fk.Columns); ok && equalAll(vals, ov) {
				continue
			}
		}
		if fk.RefTable == tbl.schema.Name && equalAll(vals, keyValues(tbl.schema, row)) {
			continue
		}
		ref, ok := s.tables[fk.RefTable]
		if !ok {
			return errors.NewConstraintError(tbl.schema.Name, fk.Name, "referenced table does not exist")
		}
		k := datastore.Key{Columns: fk.RefColumns, Values: vals}
		if _, ok := ref.rows[k.String()]; !ok {
			return errors.NewConstraintError(tbl.schema.Name, fk.Name, "referenced row "+k.String()+" does not exist")
		}
	}
	return nil
}

// checkReferenced restricts deleting a row other rows still point at.
func (s *state) checkReferenced(tbl *table, key string) error {
	for _, other := range s.tables {
		for _, fk := range other.fks {
			if fk.RefTable != tbl.schema.Name {
				continue
			}
			for k, row := range other.rows {
				if other == tbl && k == key {
					continue
				}
				vals, complete := columnValues(row, fk.Columns)
				if !complete {
					continue
				}
				if (datastore.Key{Columns: fk.RefColumns, Values: vals}).String() == key {
					return errors.NewConstraintError(other.schema.Name, fk.Name, "row is still referenced")
				}
			}
		}
	}
	return nil
}

func keyValues(schema *datastore.Table, row datastore.Row) []any {
	return schema.KeyOf(row).Values
}

func columnValues(row datastore.Row, columns []string) ([]any, bool) {
	vals := make([]any, len(columns))
	for i, c := range columns {
		if row[c] == nil {
			return nil, false
		}
		vals[i] = row[c]
	}
	return vals, true
}

func equalAll(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !scalar.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
