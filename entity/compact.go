/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// DataTypeKey is the compact-form key naming the entity type.
const DataTypeKey = "DataType"

// FormatCompact renders atoms as "Name1=Value1&Name2=Value2". Absent values
// and values without a string form are omitted.
func FormatCompact(atoms []AtomValue) string {
	var sb strings.Builder
	for _, a := range atoms {
		if a.Value == nil {
			continue
		}
		s, err := scalar.Format(a.Value)
		if err != nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(a.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(s))
	}
	return sb.String()
}

// CompactKey renders the atomized primary key in compact form.
func (i *Instance) CompactKey() string {
	return FormatCompact(i.KeyAtoms())
}

// Compact renders the atomized primary key, prefixed with the type
// identifier.
func (i *Instance) Compact() string {
	return i.CompactOf(i.typ.PrimaryKey())
}

// CompactOf renders the given members, prefixed with the type identifier.
// Passing the type's Values renders the whole instance.
func (i *Instance) CompactOf(members []*metadata.ValueMember) string {
	head := DataTypeKey + "=" + url.QueryEscape(i.typ.ID())
	body := FormatCompact(i.Atomize(members))
	if body == "" {
		return head
	}
	return head + "&" + body
}

// ParseCompact reads a compact string carrying a DataType prefix into a new
// instance of the named type.
func ParseCompact(cat *metadata.Catalog, s string) (*Instance, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, errors.NewFormatError(s, err.Error())
	}
	id := values.Get(DataTypeKey)
	if id == "" {
		return nil, errors.NewFormatError(s, "missing "+DataTypeKey)
	}
	t, ok := cat.ByID(id)
	if !ok {
		return nil, errors.NewInvalidStructuralTypeError(id, "unknown type identifier")
	}
	inst := New(t)
	if err := inst.setCompact(values); err != nil {
		return nil, err
	}
	return inst, nil
}

// UnmarshalCompact reads a compact string into i. A DataType entry, when
// present, must name i's type.
func (i *Instance) UnmarshalCompact(s string) error {
	values, err := url.ParseQuery(s)
	if err != nil {
		return errors.NewFormatError(s, err.Error())
	}
	if id := values.Get(DataTypeKey); id != "" && id != i.typ.ID() {
		return errors.NewTypeMismatchError(i.typ.ID(), id)
	}
	return i.setCompact(values)
}

func (i *Instance) setCompact(values url.Values) error {
	parsed := map[string]any{}
	for _, a := range i.typ.ValueAtoms() {
		if !values.Has(a.Name) {
			continue
		}
		v, err := scalar.Parse(a.Member.Scalar(), values.Get(a.Name))
		if err != nil {
			return errors.NewFormatError(values.Get(a.Name), fmt.Sprintf("column %s: %v", a.Name, err))
		}
		parsed[a.Name] = v
	}
	return i.SetAtomized(i.typ.ValueAtoms(), parsed)
}
