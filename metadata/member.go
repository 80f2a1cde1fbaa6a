/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metadata

import (
	"reflect"

	"github.com/suparena/entitymap/scalar"
)

// EntityMember is one structural member of an entity type.
type EntityMember interface {
	Name() string
	Kind() MemberKind
	DeclaringType() *EntityType
	IsStatic() bool
	Decorations() []any
}

type member struct {
	name        string
	kind        MemberKind
	declaring   *EntityType
	static      bool
	decorations []any
}

func (m *member) Name() string               { return m.name }
func (m *member) Kind() MemberKind           { return m.kind }
func (m *member) DeclaringType() *EntityType { return m.declaring }
func (m *member) IsStatic() bool             { return m.static }
func (m *member) Decorations() []any         { return m.decorations }

// BehaviorMember is a method or event member. It carries metadata only.
type BehaviorMember struct {
	member
}

// ValueMember is a stored field or property.
type ValueMember struct {
	member
	ordinal    int
	key        bool
	auto       bool
	column     string
	kind       scalar.Kind
	ref        reflect.Type
	referenced *EntityType
}

// Ordinal is the member's slot index in instances of any type that has it.
func (m *ValueMember) Ordinal() int { return m.ordinal }

// IsKey reports whether the member is part of the primary key.
func (m *ValueMember) IsKey() bool { return m.key }

// IsAutoGenerated reports whether storage assigns the member's value on insert.
func (m *ValueMember) IsAutoGenerated() bool { return m.auto }

// Column is the storage column name.
func (m *ValueMember) Column() string { return m.column }

// Scalar is the value kind; Invalid for reference members.
func (m *ValueMember) Scalar() scalar.Kind { return m.kind }

// IsReference reports whether the member's value is another entity.
func (m *ValueMember) IsReference() bool { return m.ref != nil }

// Referenced returns the entity type a reference member points to.
func (m *ValueMember) Referenced() *EntityType { return m.referenced }

// RefGoType is the native type of a reference member.
func (m *ValueMember) RefGoType() reflect.Type { return m.ref }

// Decorated returns the member's decorations assignable to T.
func Decorated[T any](m EntityMember) []T {
	var out []T
	for _, d := range m.Decorations() {
		if v, ok := d.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (m *ValueMember) String() string {
	if m.declaring == nil {
		return m.name
	}
	return m.declaring.name + "." + m.name
}
