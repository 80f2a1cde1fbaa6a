/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"github.com/suparena/entitymap/metadata"
)

// AtomValue is an atomized column together with its value on one instance.
type AtomValue struct {
	Name   string
	Member *metadata.ValueMember
	Value  any
}

// KeyAtoms returns the atomized primary key values.
func (i *Instance) KeyAtoms() []AtomValue {
	return i.resolve(i.typ.KeyAtoms())
}

// ValueAtoms returns the atomized values of every stored member.
func (i *Instance) ValueAtoms() []AtomValue {
	return i.resolve(i.typ.ValueAtoms())
}

// Atomize returns the atomized values of the given members, in member order.
func (i *Instance) Atomize(members []*metadata.ValueMember) []AtomValue {
	return i.resolve(Select(i.typ.ValueAtoms(), members))
}

// Select keeps the atoms rooted at one of members, in member order.
func Select(atoms []metadata.Atom, members []*metadata.ValueMember) []metadata.Atom {
	var out []metadata.Atom
	for _, m := range members {
		for _, a := range atoms {
			if a.Path[0] == m {
				out = append(out, a)
			}
		}
	}
	return out
}

// resolve reads each atom's value by walking its path. A reference whose
// key is not fully populated yields nil for every one of its components.
func (i *Instance) resolve(atoms []metadata.Atom) []AtomValue {
	out := make([]AtomValue, len(atoms))
	incomplete := map[*metadata.ValueMember]bool{}
	for n, a := range atoms {
		v := i.walk(a.Path)
		out[n] = AtomValue{Name: a.Name, Member: a.Member, Value: v}
		if v == nil && a.Path[0].IsReference() {
			incomplete[a.Path[0]] = true
		}
	}
	if len(incomplete) > 0 {
		for n, a := range atoms {
			if incomplete[a.Path[0]] {
				out[n].Value = nil
			}
		}
	}
	return out
}

func (i *Instance) walk(path []*metadata.ValueMember) any {
	if p := i.parentOf(path); p != nil {
		return p.Get(path[len(path)-1])
	}
	return nil
}

// parentOf returns the instance holding the last member of path, or nil when
// a reference along the way is unset.
func (i *Instance) parentOf(path []*metadata.ValueMember) *Instance {
	cur := i
	for _, m := range path[:len(path)-1] {
		next, _ := cur.Get(m).(*Instance)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// SetAtomized is the inverse of Atomize: it writes flattened values back,
// allocating nested instances along reference paths. Atoms missing from
// values are left untouched. A non-key reference whose components are all
// nil is cleared.
func (i *Instance) SetAtomized(atoms []metadata.Atom, values map[string]any) error {
	present := map[*metadata.ValueMember]bool{}
	touched := map[*metadata.ValueMember]bool{}
	for _, a := range atoms {
		v, ok := values[a.Name]
		if !ok {
			continue
		}
		touched[a.Path[0]] = true
		if v == nil {
			if leaf := i.parentOf(a.Path); leaf != nil {
				if err := leaf.Put(a.Member, nil); err != nil {
					return err
				}
			}
			continue
		}
		present[a.Path[0]] = true

		cur := i
		for _, m := range a.Path[:len(a.Path)-1] {
			next, _ := cur.Get(m).(*Instance)
			if next == nil {
				next = New(m.Referenced())
				if err := cur.Put(m, next); err != nil {
					return err
				}
			}
			cur = next
		}
		if err := cur.Put(a.Member, v); err != nil {
			return err
		}
	}

	for m := range touched {
		if m.IsReference() && !present[m] && !m.IsKey() {
			i.slots[m.Ordinal()] = nil
		}
	}
	return nil
}

// AtomMap returns atom values keyed by column name.
func AtomMap(atoms []AtomValue) map[string]any {
	out := make(map[string]any, len(atoms))
	for _, a := range atoms {
		out[a.Name] = a.Value
	}
	return out
}
