/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"

	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/predicate"
)

// Merge folds other into into: every stored reference to other, on any
// type, is repointed at into, then other is deleted. Rows holding other as
// part of their key are re-inserted under the new key. The work runs in the
// open transaction or in one of its own.
func (s *Session) Merge(ctx context.Context, into, other *entity.Instance) (err error) {
	if !into.Type().Related(other.Type()) {
		return errors.NewTypeMismatchError(into.Type().ID(), other.Type().ID())
	}
	if into.Equal(other) {
		return nil
	}

	if s.tx == nil {
		if err := s.Begin(ctx); err != nil {
			return err
		}
		defer func() {
			if err != nil {
				if rbErr := s.Rollback(ctx); rbErr != nil {
					s.engine.logger.Warn().Err(rbErr).Msg("rollback failed")
				}
				return
			}
			err = s.Commit(ctx)
		}()
	}

	show := s.ShowDeleted
	s.ShowDeleted = true
	defer func() { s.ShowDeleted = show }()

	for _, m := range s.engine.catalog.InboundForeignKeys(other.Type()) {
		holder := m.DeclaringType()
		exists, err := s.engine.backend.TableExists(ctx, holder.Table())
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		refs, err := s.Select(ctx, holder, Query{Filter: &predicate.ForeignKey{Member: m.Name(), Target: other}})
		if err != nil {
			return err
		}
		for _, r := range refs {
			if !m.IsKey() {
				if err := r.Put(m, into.Clone()); err != nil {
					return err
				}
				if err := s.Update(ctx, r, m.Name()); err != nil {
					return err
				}
				continue
			}
			moved := r.Clone()
			if err := moved.Put(m, into.Clone()); err != nil {
				return err
			}
			if err := s.Delete(ctx, r); err != nil {
				return err
			}
			if err := s.Insert(ctx, moved); err != nil {
				return err
			}
		}
		s.engine.logger.Debug().Str("entity_type", holder.Name()).Str("member", m.Name()).Int("rows", len(refs)).Msg("merge repointed references")
	}
	return s.Delete(ctx, other)
}
