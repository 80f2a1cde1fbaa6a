/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metadata

import (
	"reflect"

	"github.com/suparena/entitymap/scalar"
)

// MemberKind is the structural-member marker a reflector attaches to a member.
// Members reported with MemberNone are ignored by the catalog.
type MemberKind int

const (
	MemberNone MemberKind = iota
	MemberField
	MemberProperty
	MemberMethod
	MemberEvent
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberProperty:
		return "property"
	case MemberMethod:
		return "method"
	case MemberEvent:
		return "event"
	}
	return "none"
}

// IsValue reports whether members of this kind hold stored values.
func (k MemberKind) IsValue() bool {
	return k == MemberField || k == MemberProperty
}

// MemberReport describes one declared member as seen by a Reflector.
type MemberReport struct {
	Name          string
	Kind          MemberKind
	Static        bool
	Key           bool
	AutoGenerated bool
	// Column overrides the storage column name; defaults to Name.
	Column string
	// Exactly one of Scalar and Ref is set for field and property members.
	Scalar      scalar.Kind
	Ref         reflect.Type
	Decorations []any
}

// Index is a secondary index over member names.
type Index struct {
	Name    string
	Members []string
	Unique  bool
}

// TypeReport is everything a Reflector knows about one level of an entity
// type: the members it declares itself, not those it inherits.
type TypeReport struct {
	Name      string
	Namespace string
	// Table is an explicit storage table override.
	Table string
	// Base is the mapped parent type, nil for an inheritance root.
	Base    reflect.Type
	Members []MemberReport
	// SoftDelete names a boolean member marking rows logically deleted.
	SoftDelete string
	// Seeds are fixed rows, keyed by member name, written during setup.
	Seeds   []map[string]any
	Indexes []Index
}

// Reflector reports the structure of native types. Describe returns an
// InvalidStructuralType error for types that are not entity types.
type Reflector interface {
	Describe(rt reflect.Type) (*TypeReport, error)
}
