/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package engine

import (
	"context"

	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/predicate"
)

// Sort orders results by one member.
type Sort struct {
	Member     string
	Descending bool
}

// Query is a select request. The zero Query returns every visible instance.
type Query struct {
	// Filter keeps matching instances; nil matches all.
	Filter  predicate.Predicate
	OrderBy []Sort
	// Members restricts loaded values to these members plus the primary key.
	Members []string
	// Limit caps the number of results when positive.
	Limit int
}

// IsUnfiltered reports whether q asks for every instance with all values.
func (q Query) IsUnfiltered() bool {
	return predicate.IsEmpty(q.Filter) && len(q.Members) == 0 && q.Limit <= 0
}

// Select returns the instances of t, including instances of derived types,
// matching q. Logically deleted instances are left out unless the session
// shows them. A Before hook that cancels the select supplies the result.
func (s *Session) Select(ctx context.Context, t *metadata.EntityType, q Query) ([]*entity.Instance, error) {
	members, err := t.ValuesNamed(q.Members...)
	if err != nil {
		return nil, err
	}
	if err := predicate.Check(q.Filter, t); err != nil {
		return nil, err
	}
	sorts, err := resolveSorts(t, q.OrderBy)
	if err != nil {
		return nil, err
	}

	ev := s.newEvent(entity.OpSelect, nil)
	ev.Type = t
	ev.Query = q
	if err := s.fire(ctx, ev, entity.Before); err != nil {
		return nil, err
	}
	if ev.Cancel {
		return ev.Result, nil
	}

	insts, err := s.read(ctx, s.rows(), t, q.Filter, s.ShowDeleted)
	if err != nil {
		return nil, err
	}
	sortInstances(insts, sorts)
	if q.Limit > 0 && len(insts) > q.Limit {
		insts = insts[:q.Limit]
	}
	if len(members) > 0 {
		if insts, err = project(insts, members); err != nil {
			return nil, err
		}
	}
	s.engine.logger.Debug().Str("entity_type", t.Name()).Int("rows", len(insts)).Msg("select")

	ev.Result = insts
	if err := s.fire(ctx, ev, entity.After); err != nil {
		return nil, err
	}
	return ev.Result, nil
}

// First returns the first instance of t matching q, or nil.
func (s *Session) First(ctx context.Context, t *metadata.EntityType, q Query) (*entity.Instance, error) {
	q.Limit = 1
	insts, err := s.Select(ctx, t, q)
	if err != nil || len(insts) == 0 {
		return nil, err
	}
	return insts[0], nil
}

// Load refreshes inst from storage by its primary key. It fails with a
// not-found error when no visible record has that key.
func (s *Session) Load(ctx context.Context, inst *entity.Instance) error {
	found, err := s.First(ctx, inst.Type(), Query{Filter: predicate.Key(inst)})
	if err != nil {
		return err
	}
	if found == nil {
		return errors.NewNotFoundError(inst.Type().Name(), inst.CompactKey())
	}
	if err := found.CopyTo(inst); err != nil {
		return err
	}
	inst.SetState(true, true)
	return nil
}

// SearchOption adjusts Session.Search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	direct bool
}

// Direct limits a search to the members of the searched type itself.
func Direct() SearchOption {
	return func(o *searchOptions) { o.direct = true }
}

// Search returns the instances of t whose text or numeric members contain
// text. Unless Direct is given it also expands one hop: instances referencing
// a matching record through one of t's own reference members, and instances
// referenced by a matching record of a type holding a reference to t. Each
// record appears once.
func (s *Session) Search(ctx context.Context, t *metadata.EntityType, text string, opts ...SearchOption) ([]*entity.Instance, error) {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}
	out, err := s.Select(ctx, t, Query{Filter: predicate.TextSearch(t, text)})
	if err != nil || o.direct {
		return out, err
	}
	add := func(insts []*entity.Instance) {
		for _, inst := range insts {
			dup := false
			for _, have := range out {
				if have.Equal(inst) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, inst)
			}
		}
	}

	for _, m := range t.ForeignKeys() {
		refs, err := s.searchStored(ctx, m.Referenced(), text)
		if err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			continue
		}
		byRef := &predicate.Or{}
		for _, ref := range refs {
			byRef.Items = append(byRef.Items, &predicate.ForeignKey{Member: m.Name(), Target: ref})
		}
		linked, err := s.Select(ctx, t, Query{Filter: byRef})
		if err != nil {
			return nil, err
		}
		add(linked)
	}

	for _, m := range s.engine.catalog.InboundForeignKeys(t) {
		holders, err := s.searchStored(ctx, m.DeclaringType(), text)
		if err != nil {
			return nil, err
		}
		byKey := &predicate.Or{}
		for _, h := range holders {
			ref, _ := h.Get(m).(*entity.Instance)
			if ref != nil {
				byKey.Items = append(byKey.Items, predicate.Key(ref))
			}
		}
		if len(byKey.Items) == 0 {
			continue
		}
		linked, err := s.Select(ctx, t, Query{Filter: byKey})
		if err != nil {
			return nil, err
		}
		add(linked)
	}
	return out, nil
}

// searchStored text-searches t, returning nothing when t has no table.
func (s *Session) searchStored(ctx context.Context, t *metadata.EntityType, text string) ([]*entity.Instance, error) {
	exists, err := s.engine.backend.TableExists(ctx, t.Table())
	if err != nil || !exists {
		return nil, err
	}
	return s.Select(ctx, t, Query{Filter: predicate.TextSearch(t, text)})
}
