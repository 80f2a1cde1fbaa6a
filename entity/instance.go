/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Instance is one record bound to an entity type. Scalar slots hold the
// canonical value for their kind or nil; reference slots hold *Instance or
// nil. An Instance is not safe for concurrent mutation.
type Instance struct {
	typ       *metadata.EntityType
	slots     []any
	persisted bool
	loaded    bool
	hooks     []Hook
}

// New allocates an instance of t. Key members that reference another entity
// start out as an empty nested instance; every other slot is nil.
func New(t *metadata.EntityType) *Instance {
	i := &Instance{typ: t, slots: make([]any, len(t.Values()))}
	for _, m := range t.Values() {
		if m.IsKey() && m.IsReference() {
			i.slots[m.Ordinal()] = New(m.Referenced())
		}
	}
	return i
}

func (i *Instance) Type() *metadata.EntityType { return i.typ }

// IsPersisted reports whether the instance was inserted or loaded from storage.
func (i *Instance) IsPersisted() bool { return i.persisted }

// IsLoaded reports whether the instance's values reflect storage.
func (i *Instance) IsLoaded() bool { return i.loaded }

// SetState sets both lifecycle flags.
func (i *Instance) SetState(persisted, loaded bool) {
	i.persisted = persisted
	i.loaded = loaded
}

func (i *Instance) owns(m *metadata.ValueMember) bool {
	o := m.Ordinal()
	return o < len(i.slots) && i.typ.Values()[o] == m
}

// Get returns the slot of m; nil when m does not belong to the instance's type.
func (i *Instance) Get(m *metadata.ValueMember) any {
	if !i.owns(m) {
		return nil
	}
	return i.slots[m.Ordinal()]
}

// Put stores v in the slot of m, coercing scalars to the member's kind.
// Reference members accept nil or an *Instance of an assignable type.
func (i *Instance) Put(m *metadata.ValueMember, v any) error {
	if !i.owns(m) {
		return errors.NewMemberNotFoundError(i.typ.Name(), m.Name())
	}
	if m.IsReference() {
		switch ref := v.(type) {
		case nil:
			i.slots[m.Ordinal()] = nil
		case *Instance:
			if ref == nil {
				i.slots[m.Ordinal()] = nil
				return nil
			}
			if !m.Referenced().IsAssignableFrom(ref.typ) {
				return errors.NewTypeMismatchError(m.Referenced().ID(), ref.typ.ID())
			}
			i.slots[m.Ordinal()] = ref
		default:
			return fmt.Errorf("member %s: cannot assign %T to a reference", m, v)
		}
		return nil
	}

	cv, err := scalar.Coerce(m.Scalar(), v)
	if err != nil {
		return fmt.Errorf("member %s: %w", m, err)
	}
	i.slots[m.Ordinal()] = cv
	return nil
}

// Value returns the value of the named member.
func (i *Instance) Value(name string) (any, error) {
	m, err := i.typ.Value(name)
	if err != nil {
		return nil, err
	}
	return i.slots[m.Ordinal()], nil
}

// Set stores a value in the named member.
func (i *Instance) Set(name string, v any) error {
	m, err := i.typ.Value(name)
	if err != nil {
		return err
	}
	return i.Put(m, v)
}

// MustSet is Set for member names known to exist; it panics otherwise.
func (i *Instance) MustSet(name string, v any) *Instance {
	if err := i.Set(name, v); err != nil {
		panic(err)
	}
	return i
}

// Ref returns the nested instance held by a reference member, nil when unset.
func (i *Instance) Ref(name string) (*Instance, error) {
	m, err := i.typ.Value(name)
	if err != nil {
		return nil, err
	}
	if !m.IsReference() {
		return nil, fmt.Errorf("member %s is not a reference", m)
	}
	ref, _ := i.slots[m.Ordinal()].(*Instance)
	return ref, nil
}

// HasKey reports whether every atomized key component holds a value.
func (i *Instance) HasKey() bool {
	for _, a := range i.KeyAtoms() {
		if a.Value == nil {
			return false
		}
	}
	return true
}

// CopyTo copies every shared value and both lifecycle flags into other. The
// types must be assignable one way or the other.
func (i *Instance) CopyTo(other *Instance) error {
	if !i.typ.Related(other.typ) {
		return errors.NewTypeMismatchError(other.typ.ID(), i.typ.ID())
	}
	shared := i.typ.Values()
	if len(other.typ.Values()) < len(shared) {
		shared = other.typ.Values()
	}
	for _, m := range shared {
		other.slots[m.Ordinal()] = cloneSlot(i.slots[m.Ordinal()])
	}
	other.persisted = i.persisted
	other.loaded = i.loaded
	return nil
}

// Clone returns a deep copy without instance hooks.
func (i *Instance) Clone() *Instance {
	c := &Instance{typ: i.typ, slots: make([]any, len(i.slots)), persisted: i.persisted, loaded: i.loaded}
	for n, v := range i.slots {
		c.slots[n] = cloneSlot(v)
	}
	return c
}

func cloneSlot(v any) any {
	if ref, ok := v.(*Instance); ok && ref != nil {
		return ref.Clone()
	}
	return v
}

// Equal reports whether both instances denote the same record: their types
// are assignable one way or the other and every key component is equal.
func (i *Instance) Equal(other *Instance) bool {
	if i == nil || other == nil {
		return i == other
	}
	if !i.typ.Related(other.typ) {
		return false
	}
	a, b := i.KeyAtoms(), other.KeyAtoms()
	if len(a) != len(b) {
		return false
	}
	for n := range a {
		if !scalar.Equal(a[n].Value, b[n].Value) {
			return false
		}
	}
	return true
}

// Hash digests the full atomized key, consistent with Equal.
func (i *Instance) Hash() uint64 {
	d := xxhash.New()
	for _, a := range i.KeyAtoms() {
		_, _ = d.WriteString(a.Name)
		if a.Value == nil {
			_, _ = d.Write([]byte{0})
			continue
		}
		_, _ = d.Write([]byte{1})
		_, _ = d.WriteString(scalar.MustFormat(a.Value))
	}
	return d.Sum64()
}

func (i *Instance) String() string {
	return i.typ.Name() + "{" + FormatCompact(i.KeyAtoms()) + "}"
}
