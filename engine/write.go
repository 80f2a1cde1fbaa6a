/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// levelRow picks the columns of tbl out of atomized values.
func levelRow(tbl *datastore.Table, values map[string]any) datastore.Row {
	row := make(datastore.Row, len(tbl.Columns))
	for _, c := range tbl.Columns {
		row[c.Name] = values[c.Name]
	}
	return row
}

// generateKeys fills every unset auto-generated key member: integers from
// the root table's sequence, UUIDs and strings with a random UUID. It
// returns the members it filled.
func (s *Session) generateKeys(ctx context.Context, rows datastore.Rows, inst *entity.Instance) ([]*metadata.ValueMember, error) {
	var filled []*metadata.ValueMember
	for _, m := range inst.Type().PrimaryKey() {
		if !m.IsAutoGenerated() || m.IsReference() || inst.Get(m) != nil {
			continue
		}
		var v any
		switch m.Scalar() {
		case scalar.Int, scalar.Int64:
			n, err := rows.NextSequence(ctx, s.engine.Table(inst.Type().Root()), m.Column())
			if err != nil {
				return filled, err
			}
			v = n
		case scalar.UUID:
			v = uuid.New()
		case scalar.String:
			v = uuid.NewString()
		default:
			return filled, fmt.Errorf("member %s: cannot generate a %s key", m, m.Scalar())
		}
		if err := inst.Put(m, v); err != nil {
			return filled, err
		}
		filled = append(filled, m)
	}
	return filled, nil
}

// insertRows writes one row per inheritance level, the root first.
func (s *Session) insertRows(ctx context.Context, rows datastore.Rows, inst *entity.Instance) error {
	values := entity.AtomMap(inst.ValueAtoms())
	for _, lt := range inst.Type().Lineage() {
		tbl := s.engine.Table(lt)
		if err := rows.Insert(ctx, tbl, levelRow(tbl, values)); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores a new instance, generating auto keys that are unset.
func (s *Session) Insert(ctx context.Context, inst *entity.Instance) error {
	t := inst.Type()
	ev := s.newEvent(entity.OpInsert, inst)
	if err := s.fire(ctx, ev, entity.Before); err != nil || ev.Cancel {
		return err
	}

	var generated []*metadata.ValueMember
	err := s.unit(ctx, len(t.Chain()) > 1, func(rows datastore.Rows) error {
		var err error
		if generated, err = s.generateKeys(ctx, rows, inst); err != nil {
			return err
		}
		return s.insertRows(ctx, rows, inst)
	})
	if err != nil {
		for _, m := range generated {
			_ = inst.Put(m, nil)
		}
		return err
	}
	inst.SetState(true, true)
	s.wrote(t)
	s.engine.logger.Debug().Str("entity_type", t.Name()).Str("key", inst.CompactKey()).Msg("insert")
	return s.fire(ctx, ev, entity.After)
}

// Update writes the given members of a stored instance, or every member
// when none are named. Key members never change.
func (s *Session) Update(ctx context.Context, inst *entity.Instance, members ...string) error {
	t := inst.Type()
	selected, err := t.ValuesNamed(members...)
	if err != nil {
		return err
	}
	ev := s.newEvent(entity.OpUpdate, inst)
	ev.Members = selected
	if err := s.fire(ctx, ev, entity.Before); err != nil || ev.Cancel {
		return err
	}

	only := make(map[*metadata.ValueMember]bool, len(selected))
	for _, m := range selected {
		only[m] = true
	}
	values := entity.AtomMap(inst.ValueAtoms())
	type levelUpdate struct {
		tbl *datastore.Table
		set datastore.Row
	}
	var updates []levelUpdate
	for _, lt := range t.Lineage() {
		tbl := s.engine.Table(lt)
		set := datastore.Row{}
		for _, c := range tbl.Columns {
			if c.Key || (len(only) > 0 && !only[c.Atom.Path[0]]) {
				continue
			}
			set[c.Name] = values[c.Name]
		}
		if len(set) > 0 {
			updates = append(updates, levelUpdate{tbl: tbl, set: set})
		}
	}

	err = s.unit(ctx, len(updates) > 1, func(rows datastore.Rows) error {
		if len(updates) == 0 {
			root := s.engine.Table(t.Root())
			_, err := rows.Get(ctx, root, root.KeyOf(values))
			return err
		}
		for _, u := range updates {
			if err := rows.Update(ctx, u.tbl, u.tbl.KeyOf(values), u.set); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	inst.SetState(true, true)
	s.wrote(t)
	s.engine.logger.Debug().Str("entity_type", t.Name()).Str("key", inst.CompactKey()).Int("members", len(selected)).Msg("update")
	return s.fire(ctx, ev, entity.After)
}

// Delete removes a stored instance. Types with a soft-delete member are
// flagged instead. Rows of the same record in derived types' tables are
// removed first.
func (s *Session) Delete(ctx context.Context, inst *entity.Instance) error {
	t := inst.Type()
	ev := s.newEvent(entity.OpDelete, inst)
	if err := s.fire(ctx, ev, entity.Before); err != nil || ev.Cancel {
		return err
	}

	var err error
	if sd := t.SoftDelete(); sd != nil {
		err = s.unit(ctx, false, func(rows datastore.Rows) error {
			return s.softDelete(ctx, rows, inst, sd)
		})
	} else {
		multi := len(t.Chain()) > 1 || len(s.engine.catalog.SubTypes(t)) > 0
		err = s.unit(ctx, multi, func(rows datastore.Rows) error {
			return s.deleteRows(ctx, rows, inst)
		})
	}
	if err != nil {
		return err
	}
	s.wrote(t)
	s.engine.logger.Debug().Str("entity_type", t.Name()).Str("key", inst.CompactKey()).Bool("logical", t.SoftDelete() != nil).Msg("delete")
	return s.fire(ctx, ev, entity.After)
}

// softDelete loads the record, then sets its flag through an update.
func (s *Session) softDelete(ctx context.Context, rows datastore.Rows, inst *entity.Instance, sd *metadata.ValueMember) error {
	stored, err := s.readKey(ctx, rows, inst.Type(), inst)
	if err != nil {
		return err
	}
	if stored == nil {
		return errors.NewNotFoundError(inst.Type().Name(), inst.CompactKey())
	}
	tbl := s.engine.Table(sd.DeclaringType())
	key := tbl.KeyOf(entity.AtomMap(inst.KeyAtoms()))
	if err := rows.Update(ctx, tbl, key, datastore.Row{sd.Column(): true}); err != nil {
		return err
	}
	if err := inst.Put(sd, true); err != nil {
		return err
	}
	inst.SetState(true, true)
	return nil
}

// deleteRows removes the record's rows in derived tables, then its own
// levels from the most derived up to the root.
func (s *Session) deleteRows(ctx context.Context, rows datastore.Rows, inst *entity.Instance) error {
	t := inst.Type()
	key := datastore.Row(entity.AtomMap(inst.KeyAtoms()))
	if err := s.deleteDerived(ctx, rows, t, key); err != nil {
		return err
	}
	for _, lt := range t.Chain() {
		tbl := s.engine.Table(lt)
		if err := rows.Delete(ctx, tbl, tbl.KeyOf(key)); err != nil {
			return err
		}
	}
	inst.SetState(false, false)
	return nil
}

// deleteDerived recursively removes rows keyed by key from the tables of
// every type derived from t, deepest first.
func (s *Session) deleteDerived(ctx context.Context, rows datastore.Rows, t *metadata.EntityType, key datastore.Row) error {
	for _, sub := range s.engine.catalog.SubTypes(t) {
		exists, err := s.engine.backend.TableExists(ctx, sub.Table())
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		tbl := s.engine.Table(sub)
		k := tbl.KeyOf(key)
		if _, err := rows.Get(ctx, tbl, k); err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return err
		}
		if err := s.deleteDerived(ctx, rows, sub, key); err != nil {
			return err
		}
		if err := rows.Delete(ctx, tbl, k); err != nil {
			return err
		}
		s.engine.logger.Debug().Str("entity_type", sub.Name()).Str("key", k.String()).Msg("delete derived row")
	}
	return nil
}
