/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"
	"fmt"

	"github.com/suparena/entitymap/datastore"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
)

// levelsOf lists the inheritance levels of types, each once, roots before
// the types derived from them.
func levelsOf(types []*metadata.EntityType) []*metadata.EntityType {
	var out []*metadata.EntityType
	seen := map[*metadata.EntityType]bool{}
	for _, t := range types {
		for _, lt := range t.Lineage() {
			if !seen[lt] {
				seen[lt] = true
				out = append(out, lt)
			}
		}
	}
	return out
}

// Setup (re)creates the storage of types and of their ancestors. The order
// is fixed: drop every table that exists, create the tables, insert seed
// rows, create indexes, then foreign keys. Seeding before foreign keys lets
// seed rows reference each other. Existing rows are lost.
func (s *Session) Setup(ctx context.Context, types ...*metadata.EntityType) error {
	if s.tx != nil {
		return errors.NewConditionFailedError("setup", "transaction open")
	}
	b := s.engine.backend
	levels := levelsOf(types)

	ev := s.newEvent(entity.OpSetup, nil)
	ev.Types = levels
	if err := s.fire(ctx, ev, entity.Before); err != nil {
		return err
	}
	if ev.Cancel {
		return nil
	}

	for i := len(levels) - 1; i >= 0; i-- {
		if err := b.DropTable(ctx, levels[i].Table()); err != nil {
			return fmt.Errorf("drop %s: %w", levels[i].Table(), err)
		}
	}
	for _, lt := range levels {
		if err := b.CreateTable(ctx, s.engine.Table(lt)); err != nil {
			return err
		}
	}
	for _, lt := range levels {
		if err := s.seed(ctx, lt); err != nil {
			return fmt.Errorf("seed %s: %w", lt.Table(), err)
		}
	}
	for _, lt := range levels {
		if err := b.CreateIndexes(ctx, s.engine.Table(lt)); err != nil {
			return err
		}
	}
	for _, lt := range levels {
		if err := b.CreateForeignKeys(ctx, s.engine.Table(lt)); err != nil {
			return err
		}
	}
	s.engine.logger.Info().Int("tables", len(levels)).Msg("setup complete")
	return s.fire(ctx, ev, entity.After)
}

// seed inserts the fixed rows declared on t, bypassing hooks.
func (s *Session) seed(ctx context.Context, t *metadata.EntityType) error {
	for _, values := range t.Seeds() {
		inst := entity.New(t)
		for name, v := range values {
			if err := setSeedValue(inst, name, v); err != nil {
				return err
			}
		}
		err := s.unit(ctx, len(t.Chain()) > 1, func(rows datastore.Rows) error {
			if _, err := s.generateKeys(ctx, rows, inst); err != nil {
				return err
			}
			return s.insertRows(ctx, rows, inst)
		})
		if err != nil {
			return err
		}
	}
	if n := len(t.Seeds()); n > 0 {
		s.engine.logger.Debug().Str("entity_type", t.Name()).Int("rows", n).Msg("seeded")
	}
	return nil
}

// setSeedValue accepts, for a reference member with a single key component,
// the bare key value of the referenced record.
func setSeedValue(inst *entity.Instance, name string, v any) error {
	m, err := inst.Type().Value(name)
	if err != nil {
		return err
	}
	if _, isInst := v.(*entity.Instance); m.IsReference() && !isInst && v != nil {
		atoms := m.Referenced().KeyAtoms()
		if len(atoms) != 1 {
			return fmt.Errorf("seed member %s: key of %s has %d components", m, m.Referenced(), len(atoms))
		}
		ref := entity.New(m.Referenced())
		if err := ref.SetAtomized(atoms, map[string]any{atoms[0].Name: v}); err != nil {
			return err
		}
		v = ref
	}
	return inst.Put(m, v)
}

// VerifySetup checks that the backend can hold every type: that it supports
// every column kind and that a trivial select succeeds. It does not stop at
// the first failure; the result holds one UnsupportedTypeForBackend error per
// failing type and is empty when all is well.
func (s *Session) VerifySetup(ctx context.Context, types ...*metadata.EntityType) []error {
	b := s.engine.backend
	var errs []error
	for _, t := range types {
		var cause error
		for _, lt := range t.Lineage() {
			tbl := s.engine.Table(lt)
			for _, c := range tbl.Columns {
				if !b.Supports(c.Kind) {
					cause = errors.NewConstraintError(tbl.Name, c.Name, "unsupported column kind "+c.Kind.String())
					break
				}
			}
			if cause != nil {
				break
			}
		}
		if cause == nil {
			_, cause = s.Select(ctx, t, Query{Limit: 1})
		}
		if cause != nil {
			s.engine.logger.Warn().Err(cause).Str("entity_type", t.Name()).Msg("verify setup failed")
			errs = append(errs, errors.NewUnsupportedTypeForBackendError(t.Name(), b.Name(), cause))
		}
	}
	return errs
}
