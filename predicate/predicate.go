/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package predicate

import (
	"fmt"
	"strings"

	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Predicate is an immutable boolean expression over one instance. Match has
// no side effects.
type Predicate interface {
	Match(inst *entity.Instance) bool
}

// Compare tests a member against a constant or, when Other is set, against
// another member of the same instance. Equality operators treat an absent
// value as a value; ordering operators are false when either side is absent.
type Compare struct {
	Member string
	Op     scalar.Op
	Value  any
	Other  string
}

func (c *Compare) Match(inst *entity.Instance) bool {
	m, err := inst.Type().Value(c.Member)
	if err != nil {
		return false
	}
	operand := c.Value
	if c.Other != "" {
		if operand, err = inst.Value(c.Other); err != nil {
			return false
		}
	} else {
		operand = coerce(m, operand)
	}
	return scalar.Satisfies(c.Op, inst.Get(m), operand)
}

// coerce brings a constant to the member's kind so that, for example, a
// string literal compares equal to a UUID value.
func coerce(m *metadata.ValueMember, v any) any {
	if v == nil || m.IsReference() {
		return v
	}
	if cv, err := scalar.Coerce(m.Scalar(), v); err == nil {
		return cv
	}
	return v
}

func Eq(member string, v any) *Compare { return &Compare{Member: member, Op: scalar.OpEqual, Value: v} }
func Ne(member string, v any) *Compare {
	return &Compare{Member: member, Op: scalar.OpNotEqual, Value: v}
}
func Gt(member string, v any) *Compare {
	return &Compare{Member: member, Op: scalar.OpGreater, Value: v}
}
func Ge(member string, v any) *Compare {
	return &Compare{Member: member, Op: scalar.OpGreaterOrEqual, Value: v}
}
func Lt(member string, v any) *Compare { return &Compare{Member: member, Op: scalar.OpLess, Value: v} }
func Le(member string, v any) *Compare {
	return &Compare{Member: member, Op: scalar.OpLessOrEqual, Value: v}
}

// CompareMembers compares two members of the same instance.
func CompareMembers(member string, op scalar.Op, other string) *Compare {
	return &Compare{Member: member, Op: op, Other: other}
}

// Pattern matches string values against a pattern with an optional "%"
// wildcard at the very start, the very end, or both.
type Pattern struct {
	Member        string
	CaseSensitive bool

	raw      string
	core     string
	anyStart bool
	anyEnd   bool
}

// Like builds a case-sensitive pattern. A wildcard anywhere else than the
// first or last character fails with a FormatError.
func Like(member, pattern string) (*Pattern, error) {
	p := &Pattern{Member: member, CaseSensitive: true, raw: pattern}
	core := pattern
	if strings.HasPrefix(core, "%") {
		p.anyStart = true
		core = core[1:]
	}
	if strings.HasSuffix(core, "%") {
		p.anyEnd = true
		core = core[:len(core)-1]
	}
	if strings.Contains(core, "%") {
		return nil, errors.NewFormatError(pattern, "wildcard is only allowed at the start or the end")
	}
	p.core = core
	return p, nil
}

// ILike builds a case-insensitive pattern.
func ILike(member, pattern string) (*Pattern, error) {
	p, err := Like(member, pattern)
	if err != nil {
		return nil, err
	}
	p.CaseSensitive = false
	return p, nil
}

// MustLike is Like for patterns known to be well formed.
func MustLike(member, pattern string) *Pattern {
	p, err := Like(member, pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string { return p.Member + " LIKE " + p.raw }

func (p *Pattern) Match(inst *entity.Instance) bool {
	v, err := inst.Value(p.Member)
	if err != nil || v == nil {
		return false
	}
	s, err := scalar.Format(v)
	if err != nil {
		return false
	}
	core := p.core
	if !p.CaseSensitive {
		s, core = strings.ToLower(s), strings.ToLower(core)
	}
	switch {
	case p.anyStart && p.anyEnd:
		return strings.Contains(s, core)
	case p.anyStart:
		return strings.HasSuffix(s, core)
	case p.anyEnd:
		return strings.HasPrefix(s, core)
	}
	return s == core
}

// In matches when the member equals one of Values.
type In struct {
	Member string
	Values []any
	// Fold compares strings case-insensitively.
	Fold bool
}

func OneOf(member string, values ...any) *In { return &In{Member: member, Values: values} }

func OneOfFold(member string, values ...any) *In {
	return &In{Member: member, Values: values, Fold: true}
}

func (p *In) Match(inst *entity.Instance) bool {
	m, err := inst.Type().Value(p.Member)
	if err != nil {
		return false
	}
	v := inst.Get(m)
	for _, candidate := range p.Values {
		candidate = coerce(m, candidate)
		if p.Fold && scalar.EqualFold(v, candidate) || !p.Fold && scalar.Equal(v, candidate) {
			return true
		}
	}
	return false
}

// Between matches lo <= member <= hi.
func Between(member string, lo, hi any) *And {
	return All(Ge(member, lo), Le(member, hi))
}

// ForeignKey matches when a reference member denotes the same record as
// Target under instance equality. A nil Target matches unset references.
type ForeignKey struct {
	Member string
	Target *entity.Instance
}

func (p *ForeignKey) Match(inst *entity.Instance) bool {
	ref, err := inst.Ref(p.Member)
	if err != nil {
		return false
	}
	if ref == nil || p.Target == nil {
		return ref == nil && p.Target == nil
	}
	return ref.Equal(p.Target)
}

// PrimaryKey matches the instance denoting the same record as Target.
type PrimaryKey struct {
	Target *entity.Instance
}

func (p *PrimaryKey) Match(inst *entity.Instance) bool {
	return inst.Equal(p.Target)
}

// Key builds a PrimaryKey predicate.
func Key(target *entity.Instance) *PrimaryKey { return &PrimaryKey{Target: target} }

// And matches when every item matches; an empty And matches everything.
type And struct {
	Items []Predicate
}

func All(items ...Predicate) *And { return &And{Items: items} }

func (p *And) Match(inst *entity.Instance) bool {
	for _, item := range p.Items {
		if !item.Match(inst) {
			return false
		}
	}
	return true
}

// Or matches when any item matches; an empty Or matches nothing.
type Or struct {
	Items []Predicate
}

func Any(items ...Predicate) *Or { return &Or{Items: items} }

func (p *Or) Match(inst *entity.Instance) bool {
	for _, item := range p.Items {
		if item.Match(inst) {
			return true
		}
	}
	return false
}

// Not negates an item.
type Not struct {
	Item Predicate
}

func (p *Not) Match(inst *entity.Instance) bool {
	return !p.Item.Match(inst)
}

// Func adapts a callback into a predicate.
type Func func(inst *entity.Instance) bool

func (f Func) Match(inst *entity.Instance) bool { return f(inst) }

// IsEmpty reports whether p matches every instance without inspecting it:
// nil or an And with no items.
func IsEmpty(p Predicate) bool {
	if p == nil {
		return true
	}
	a, ok := p.(*And)
	return ok && len(a.Items) == 0
}

// Check verifies every member name in p exists on t.
func Check(p Predicate, t *metadata.EntityType) error {
	switch n := p.(type) {
	case nil:
		return nil
	case *Compare:
		if _, err := t.Value(n.Member); err != nil {
			return err
		}
		if n.Other != "" {
			_, err := t.Value(n.Other)
			return err
		}
	case *Pattern:
		_, err := t.Value(n.Member)
		return err
	case *In:
		_, err := t.Value(n.Member)
		return err
	case *ForeignKey:
		m, err := t.Value(n.Member)
		if err != nil {
			return err
		}
		if !m.IsReference() {
			return fmt.Errorf("member %s is not a reference", m)
		}
	case *And:
		for _, item := range n.Items {
			if err := Check(item, t); err != nil {
				return err
			}
		}
	case *Or:
		for _, item := range n.Items {
			if err := Check(item, t); err != nil {
				return err
			}
		}
	case *Not:
		return Check(n.Item, t)
	}
	return nil
}

// TextSearch builds a case-insensitive "contains" search over every string
// and numeric member of t.
func TextSearch(t *metadata.EntityType, text string) *Or {
	text = strings.ReplaceAll(text, "%", "")
	or := &Or{}
	for _, m := range t.Values() {
		if m.IsReference() || !(m.Scalar().IsText() || m.Scalar().IsNumeric()) {
			continue
		}
		p, _ := ILike(m.Name(), "%"+text+"%")
		or.Items = append(or.Items, p)
	}
	return or
}
