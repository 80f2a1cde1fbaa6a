/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
)

// FromStruct builds an instance from a Go struct (or pointer to one) whose
// type is known to the catalog. Exported fields are matched to value members
// by name; fields without a member are ignored.
func FromStruct(cat *metadata.Catalog, v any) (*Instance, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("entity: nil %T", v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, errors.NewInvalidStructuralTypeError(rv.Type().String(), "not a struct")
	}
	t, err := cat.TypeOf(rv.Type())
	if err != nil {
		return nil, err
	}
	inst := New(t)
	if err := inst.readStruct(cat, rv); err != nil {
		return nil, err
	}
	return inst, nil
}

func (i *Instance) readStruct(cat *metadata.Catalog, rv reflect.Value) error {
	for _, m := range i.typ.Values() {
		f := rv.FieldByName(m.Name())
		if !f.IsValid() || !f.CanInterface() {
			continue
		}
		if m.IsReference() {
			ref, err := refFromField(cat, f)
			if err != nil {
				return fmt.Errorf("member %s: %w", m, err)
			}
			if ref == nil && m.IsKey() {
				continue
			}
			if err := i.Put(m, ref); err != nil {
				return err
			}
			continue
		}
		if m.IsAutoGenerated() && f.IsZero() {
			continue
		}
		if err := i.Put(m, f.Interface()); err != nil {
			return err
		}
	}
	return nil
}

func refFromField(cat *metadata.Catalog, f reflect.Value) (*Instance, error) {
	if f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface {
		if f.IsNil() {
			return nil, nil
		}
	}
	return FromStruct(cat, f.Interface())
}

// ToStruct copies the instance's values into the struct dst points to.
// Fields are matched by member name and converted to the field's type.
func (i *Instance) ToStruct(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("entity: ToStruct needs a non-nil struct pointer, got %T", dst)
	}
	return i.writeStruct(rv.Elem())
}

func (i *Instance) writeStruct(rv reflect.Value) error {
	for _, m := range i.typ.Values() {
		f := rv.FieldByName(m.Name())
		if !f.IsValid() || !f.CanSet() {
			continue
		}
		v := i.slots[m.Ordinal()]
		if v == nil {
			f.SetZero()
			continue
		}
		if ref, ok := v.(*Instance); ok {
			if err := ref.intoField(f); err != nil {
				return fmt.Errorf("member %s: %w", m, err)
			}
			continue
		}
		if err := assign(f, v); err != nil {
			return fmt.Errorf("member %s: %w", m, err)
		}
	}
	return nil
}

func (i *Instance) intoField(f reflect.Value) error {
	target := f.Type()
	ptr := target.Kind() == reflect.Pointer
	if ptr {
		target = target.Elem()
	}
	if target.Kind() == reflect.Interface {
		nv := reflect.New(i.typ.GoType())
		if err := i.writeStruct(nv.Elem()); err != nil {
			return err
		}
		if !nv.Type().AssignableTo(f.Type()) {
			return fmt.Errorf("cannot assign %s to %s", nv.Type(), f.Type())
		}
		f.Set(nv)
		return nil
	}
	if target.Kind() != reflect.Struct {
		return fmt.Errorf("cannot bind a reference to %s", f.Type())
	}
	nv := reflect.New(target)
	if err := i.writeStruct(nv.Elem()); err != nil {
		return err
	}
	if ptr {
		f.Set(nv)
	} else {
		f.Set(nv.Elem())
	}
	return nil
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	dateTimeType = reflect.TypeOf(strfmt.DateTime{})
)

// assign converts a canonical scalar to the field's type.
func assign(f reflect.Value, v any) error {
	target := f.Type()
	if target.Kind() == reflect.Pointer {
		nv := reflect.New(target.Elem())
		if err := assign(nv.Elem(), v); err != nil {
			return err
		}
		f.Set(nv)
		return nil
	}

	if dt, ok := v.(strfmt.DateTime); ok {
		switch target {
		case timeType:
			f.Set(reflect.ValueOf(time.Time(dt)))
			return nil
		case dateTimeType:
			f.Set(reflect.ValueOf(dt))
			return nil
		}
	}

	val := reflect.ValueOf(v)
	switch {
	case val.Type().AssignableTo(target):
		f.Set(val)
	case isNumber(val.Kind()) && isNumber(target.Kind()):
		f.Set(val.Convert(target))
	case val.Kind() == reflect.String && target.Kind() == reflect.String:
		f.SetString(val.String())
	case val.Kind() == reflect.Bool && target.Kind() == reflect.Bool:
		f.SetBool(val.Bool())
	default:
		return fmt.Errorf("cannot assign %T to %s", v, target)
	}
	return nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
