/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metadata

import (
	"fmt"
	"strings"

	"github.com/suparena/entitymap/errors"
)

// Atom is one flattened scalar column produced by atomizing members.
type Atom struct {
	// Name is the synthetic column name, e.g. "Order_Customer_Id".
	Name string
	// Member is the scalar leaf.
	Member *ValueMember
	// Path runs from the outermost member down to Member.
	Path []*ValueMember
}

// Atomize flattens members into scalar columns. A reference member expands
// into the referenced type's primary key with "<column>_" prefixed to every
// name. A key path that re-enters a type already being expanded fails with
// InvalidStructuralType.
func Atomize(members []*ValueMember) ([]Atom, error) {
	return atomize(members, "", nil, map[*EntityType]bool{})
}

func atomize(members []*ValueMember, prefix string, path []*ValueMember, visiting map[*EntityType]bool) ([]Atom, error) {
	var atoms []Atom
	for _, m := range members {
		p := append(append([]*ValueMember(nil), path...), m)
		name := prefix + m.column
		if !m.IsReference() {
			atoms = append(atoms, Atom{Name: name, Member: m, Path: p})
			continue
		}

		ref := m.referenced
		if ref == nil {
			return nil, errors.NewInvalidStructuralTypeError(m.String(), "unresolved reference")
		}
		if visiting[ref] {
			return nil, errors.NewInvalidStructuralTypeError(ref.name,
				fmt.Sprintf("key reference cycle through %s", describePath(p)))
		}
		visiting[ref] = true
		sub, err := atomize(ref.PrimaryKey(), name+"_", p, visiting)
		delete(visiting, ref)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, sub...)
	}
	return atoms, nil
}

func describePath(path []*ValueMember) string {
	parts := make([]string, len(path))
	for i, m := range path {
		parts[i] = m.String()
	}
	return strings.Join(parts, " -> ")
}

// AtomNames returns the column names of atoms.
func AtomNames(atoms []Atom) []string {
	names := make([]string, len(atoms))
	for i, a := range atoms {
		names[i] = a.Name
	}
	return names
}
