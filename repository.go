/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entitymap

import (
	"context"
	"reflect"

	"github.com/suparena/entitymap/engine"
	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/predicate"
)

// Repository stores values of the Go struct type T. Values cross the
// boundary by field name; generated keys are written back on insert.
type Repository[T any] struct {
	store   *Store
	typ     *metadata.EntityType
	session *engine.Session
}

// RepositoryFor returns the repository of T, creating it on first use.
func RepositoryFor[T any](s *Store) (*Repository[T], error) {
	rt := reflect.TypeFor[T]()

	s.mu.RLock()
	r, ok := s.repos[rt]
	s.mu.RUnlock()
	if ok {
		return r.(*Repository[T]), nil
	}

	t, err := s.catalog.TypeOf(rt)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[rt]; ok {
		return r.(*Repository[T]), nil
	}
	repo := &Repository[T]{store: s, typ: t}
	s.repos[rt] = repo
	return repo, nil
}

// MustRepositoryFor is RepositoryFor panicking on error.
func MustRepositoryFor[T any](s *Store) *Repository[T] {
	r, err := RepositoryFor[T](s)
	if err != nil {
		panic(err)
	}
	return r
}

// Type returns the entity type of T.
func (r *Repository[T]) Type() *metadata.EntityType { return r.typ }

// In returns a copy of r running its operations in session, for example
// inside a transaction.
func (r *Repository[T]) In(session *engine.Session) *Repository[T] {
	c := *r
	c.session = session
	return &c
}

func (r *Repository[T]) sess() *engine.Session {
	if r.session != nil {
		return r.session
	}
	return r.store.Session()
}

func (r *Repository[T]) instance(v *T) (*entity.Instance, error) {
	return entity.FromStruct(r.store.catalog, v)
}

// Insert stores v and copies generated key values back into it.
func (r *Repository[T]) Insert(ctx context.Context, v *T) error {
	inst, err := r.instance(v)
	if err != nil {
		return err
	}
	if err := r.sess().Insert(ctx, inst); err != nil {
		return err
	}
	return inst.ToStruct(v)
}

// Update writes v, all members or only the named ones.
func (r *Repository[T]) Update(ctx context.Context, v *T, members ...string) error {
	inst, err := r.instance(v)
	if err != nil {
		return err
	}
	return r.sess().Update(ctx, inst, members...)
}

// Delete removes v, or flags it when T is logically deleted.
func (r *Repository[T]) Delete(ctx context.Context, v *T) error {
	inst, err := r.instance(v)
	if err != nil {
		return err
	}
	if err := r.sess().Delete(ctx, inst); err != nil {
		return err
	}
	return inst.ToStruct(v)
}

// Get fills v from storage using its key fields.
func (r *Repository[T]) Get(ctx context.Context, v *T) error {
	inst, err := r.instance(v)
	if err != nil {
		return err
	}
	if err := r.sess().Load(ctx, inst); err != nil {
		return err
	}
	return inst.ToStruct(v)
}

// Find returns the values matching q.
func (r *Repository[T]) Find(ctx context.Context, q engine.Query) ([]*T, error) {
	insts, err := r.sess().Select(ctx, r.typ, q)
	if err != nil {
		return nil, err
	}
	return r.values(insts)
}

// All returns every visible value.
func (r *Repository[T]) All(ctx context.Context) ([]*T, error) {
	return r.Find(ctx, engine.Query{})
}

// Filter returns the values matching an AIP-160 filter expression such as
// `Name = "Ada" AND Id > 3`.
func (r *Repository[T]) Filter(ctx context.Context, filter string, orderBy ...engine.Sort) ([]*T, error) {
	p, err := predicate.Parse(r.typ, filter)
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, engine.Query{Filter: p, OrderBy: orderBy})
}

// Search returns the values containing text, directly or one reference hop
// away in either direction. Pass engine.Direct to skip the hop.
func (r *Repository[T]) Search(ctx context.Context, text string, opts ...engine.SearchOption) ([]*T, error) {
	insts, err := r.sess().Search(ctx, r.typ, text, opts...)
	if err != nil {
		return nil, err
	}
	return r.values(insts)
}

func (r *Repository[T]) values(insts []*entity.Instance) ([]*T, error) {
	out := make([]*T, len(insts))
	for n, inst := range insts {
		v := new(T)
		if err := inst.ToStruct(v); err != nil {
			return nil, err
		}
		out[n] = v
	}
	return out, nil
}
