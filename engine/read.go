/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"
	"sort"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/predicate"
	"github.com/suparena/entitymap/scalar"
)

// levelRows holds the rows of one table keyed by their key string, in scan
// order. Every level of an inheritance family shares the key columns, so a
// key string identifies the same record at each level.
type levelRows struct {
	order []string
	byKey map[string]datastore.Row
}

func (l *levelRows) add(key string, row datastore.Row) {
	if l.byKey == nil {
		l.byKey = make(map[string]datastore.Row)
	}
	if _, dup := l.byKey[key]; !dup {
		l.order = append(l.order, key)
	}
	l.byKey[key] = row
}

func (s *Session) scanLevel(ctx context.Context, rows datastore.Rows, t *metadata.EntityType) (*levelRows, error) {
	tbl := s.engine.Table(t)
	scanned, err := rows.Scan(ctx, tbl)
	if err != nil {
		return nil, err
	}
	lr := &levelRows{}
	for _, row := range scanned {
		lr.add(tbl.KeyOf(row).String(), row)
	}
	return lr, nil
}

// storedDescendants lists the types derived from t whose tables exist,
// nearest first.
func (s *Session) storedDescendants(ctx context.Context, t *metadata.EntityType) ([]*metadata.EntityType, error) {
	var out []*metadata.EntityType
	for _, d := range s.engine.catalog.Descendants(t) {
		exists, err := s.engine.backend.TableExists(ctx, d.Table())
		if err != nil {
			return nil, err
		}
		if exists {
			out = append(out, d)
		}
	}
	return out, nil
}

// concrete picks the most derived type holding key, falling back to t.
func concrete(t *metadata.EntityType, descendants []*metadata.EntityType, levels map[*metadata.EntityType]*levelRows, key string) *metadata.EntityType {
	best := t
	for _, d := range descendants {
		lr := levels[d]
		if lr == nil {
			continue
		}
		if _, ok := lr.byKey[key]; ok && len(d.Chain()) > len(best.Chain()) {
			best = d
		}
	}
	return best
}

// assemble builds one instance of t from a row per inheritance level, the
// most derived level first. It returns nil when a level is missing.
func (s *Session) assemble(t *metadata.EntityType, key string, levels map[*metadata.EntityType]*levelRows) (*entity.Instance, error) {
	inst := entity.New(t)
	for _, lt := range t.Chain() {
		lr := levels[lt]
		if lr == nil {
			return nil, nil
		}
		row, ok := lr.byKey[key]
		if !ok {
			return nil, nil
		}
		if err := inst.SetAtomized(s.engine.Table(lt).Atoms(), row); err != nil {
			return nil, err
		}
	}
	inst.SetState(true, true)
	return inst, nil
}

func isDeleted(inst *entity.Instance) bool {
	sd := inst.Type().SoftDelete()
	if sd == nil {
		return false
	}
	flagged, _ := inst.Get(sd).(bool)
	return flagged
}

// read returns the instances of t and of every stored type derived from it
// matching filter. A primary-key filter reads single rows instead of
// scanning.
func (s *Session) read(ctx context.Context, rows datastore.Rows, t *metadata.EntityType, filter predicate.Predicate, showDeleted bool) ([]*entity.Instance, error) {
	if pk, ok := filter.(*predicate.PrimaryKey); ok && pk.Target != nil {
		inst, err := s.readKey(ctx, rows, t, pk.Target)
		if err != nil || inst == nil {
			return nil, err
		}
		if !showDeleted && isDeleted(inst) {
			return nil, nil
		}
		return []*entity.Instance{inst}, nil
	}

	descendants, err := s.storedDescendants(ctx, t)
	if err != nil {
		return nil, err
	}
	levels := make(map[*metadata.EntityType]*levelRows)
	for _, lt := range append(t.Chain(), descendants...) {
		if levels[lt], err = s.scanLevel(ctx, rows, lt); err != nil {
			return nil, err
		}
	}

	var out []*entity.Instance
	for _, key := range levels[t].order {
		inst, err := s.assemble(concrete(t, descendants, levels, key), key, levels)
		if err == nil && inst == nil {
			inst, err = s.assemble(t, key, levels)
		}
		if err != nil {
			return nil, err
		}
		if inst == nil {
			s.engine.logger.Warn().Str("entity_type", t.Name()).Str("key", key).Msg("row missing at an inherited level")
			continue
		}
		if !showDeleted && isDeleted(inst) {
			continue
		}
		if filter != nil && !filter.Match(inst) {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// readKey loads the record of t denoted by the key of target, or nil.
func (s *Session) readKey(ctx context.Context, rows datastore.Rows, t *metadata.EntityType, target *entity.Instance) (*entity.Instance, error) {
	if !target.HasKey() {
		return nil, nil
	}
	values := datastore.Row(entity.AtomMap(target.KeyAtoms()))
	get := func(lt *metadata.EntityType) (datastore.Row, string, error) {
		tbl := s.engine.Table(lt)
		key := tbl.KeyOf(values)
		row, err := rows.Get(ctx, tbl, key)
		if errors.IsNotFound(err) {
			return nil, "", nil
		}
		return row, key.String(), err
	}

	levels := make(map[*metadata.EntityType]*levelRows)
	var key string
	for _, lt := range t.Chain() {
		row, k, err := get(lt)
		if err != nil || row == nil {
			return nil, err
		}
		key = k
		levels[lt] = &levelRows{}
		levels[lt].add(k, row)
	}

	descendants, err := s.storedDescendants(ctx, t)
	if err != nil {
		return nil, err
	}
	for _, d := range descendants {
		row, k, err := get(d)
		if err != nil {
			return nil, err
		}
		if row != nil {
			levels[d] = &levelRows{}
			levels[d].add(k, row)
		}
	}

	inst, err := s.assemble(concrete(t, descendants, levels, key), key, levels)
	if err == nil && inst == nil {
		inst, err = s.assemble(t, key, levels)
	}
	return inst, err
}

// sortKey is the comparable form of a member value: scalars as they are,
// references by their compact key.
func sortKey(inst *entity.Instance, m *metadata.ValueMember) any {
	v := inst.Get(m)
	if ref, ok := v.(*entity.Instance); ok {
		if ref == nil || !ref.HasKey() {
			return nil
		}
		return ref.CompactKey()
	}
	return v
}

// compareValues orders nil first, then by scalar comparison.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, _ := scalar.Compare(a, b)
	return c
}

type sortSpec struct {
	member *metadata.ValueMember
	desc   bool
}

func resolveSorts(t *metadata.EntityType, sorts []Sort) ([]sortSpec, error) {
	out := make([]sortSpec, 0, len(sorts))
	for _, srt := range sorts {
		m, err := t.Value(srt.Member)
		if err != nil {
			return nil, err
		}
		out = append(out, sortSpec{member: m, desc: srt.Descending})
	}
	return out, nil
}

func sortInstances(insts []*entity.Instance, specs []sortSpec) {
	if len(specs) == 0 {
		return
	}
	sort.SliceStable(insts, func(i, j int) bool {
		for _, sp := range specs {
			c := compareValues(sortKey(insts[i], sp.member), sortKey(insts[j], sp.member))
			if c == 0 {
				continue
			}
			if sp.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// project keeps the primary key and the given members; the result is marked
// as not fully loaded.
func project(insts []*entity.Instance, members []*metadata.ValueMember) ([]*entity.Instance, error) {
	out := make([]*entity.Instance, len(insts))
	for n, inst := range insts {
		p := entity.New(inst.Type())
		for _, m := range append(inst.Type().PrimaryKey(), members...) {
			if err := p.Put(m, inst.Get(m)); err != nil {
				return nil, err
			}
		}
		p.SetState(true, false)
		out[n] = p
	}
	return out, nil
}
