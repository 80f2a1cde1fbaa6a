/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Registry holds static entity descriptors keyed by Go type. It implements
// metadata.Reflector.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[reflect.Type]*Descriptor
	byName      map[string]reflect.Type
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		descriptors: make(map[reflect.Type]*Descriptor),
		byName:      make(map[string]reflect.Type),
	}
}

// Default is the process registry used by package-level Register calls.
var Default = New()

// Register describes T in r. If T is already registered, it panics to prevent
// accidental overrides.
func Register[T any](r *Registry, describe func(d *Descriptor)) {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	d := &Descriptor{goType: rt}
	describe(d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[rt]; exists {
		panic(fmt.Sprintf("type registry: type %s already registered", rt))
	}
	r.descriptors[rt] = d
	r.byName[typeName(rt)] = rt
}

// MustRegister registers T in the default registry.
func MustRegister[T any](describe func(d *Descriptor)) {
	Register[T](Default, describe)
}

// Describe reports the level of rt declared by its descriptor.
func (r *Registry) Describe(rt reflect.Type) (*metadata.TypeReport, error) {
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	r.mu.RLock()
	d, ok := r.descriptors[rt]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewInvalidStructuralTypeError(rt.String(), "type is not registered")
	}
	return d.report(), nil
}

// Lookup returns the Go type registered under a type identifier.
func (r *Registry) Lookup(id string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.byName[id]
	if !ok {
		return nil, fmt.Errorf("type registry: no type registered for %q", id)
	}
	return rt, nil
}

// Types lists every registered Go type ordered by identifier.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byName))
	for id := range r.byName {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]reflect.Type, len(ids))
	for i, id := range ids {
		out[i] = r.byName[id]
	}
	return out
}

func typeName(rt reflect.Type) string {
	if rt.PkgPath() == "" {
		return rt.String()
	}
	return rt.PkgPath() + "." + rt.Name()
}

// Descriptor declares one level of an entity type.
type Descriptor struct {
	goType     reflect.Type
	name       string
	namespace  string
	table      string
	base       reflect.Type
	members    []*MemberDescriptor
	softDelete string
	seeds      []map[string]any
	indexes    []metadata.Index
}

// Name overrides the entity name, which defaults to the Go type name.
func (d *Descriptor) Name(name string) *Descriptor {
	d.name = name
	return d
}

// Namespace overrides the namespace, which defaults to the Go package path.
func (d *Descriptor) Namespace(ns string) *Descriptor {
	d.namespace = ns
	return d
}

// Table sets an explicit storage table name.
func (d *Descriptor) Table(name string) *Descriptor {
	d.table = name
	return d
}

// Extends makes the type derive from base (table-per-type inheritance).
func (d *Descriptor) Extends(base reflect.Type) *Descriptor {
	d.base = base
	return d
}

// SoftDelete names the boolean member marking rows logically deleted.
func (d *Descriptor) SoftDelete(member string) *Descriptor {
	d.softDelete = member
	return d
}

// Seed adds a fixed row, keyed by member name, written during setup.
func (d *Descriptor) Seed(values map[string]any) *Descriptor {
	d.seeds = append(d.seeds, values)
	return d
}

func (d *Descriptor) add(m *MemberDescriptor) *MemberDescriptor {
	d.members = append(d.members, m)
	return m
}

// Field declares a stored field of the given scalar kind.
func (d *Descriptor) Field(name string, kind scalar.Kind) *MemberDescriptor {
	return d.add(&MemberDescriptor{r: metadata.MemberReport{Name: name, Kind: metadata.MemberField, Scalar: kind}})
}

// Property declares a stored property of the given scalar kind.
func (d *Descriptor) Property(name string, kind scalar.Kind) *MemberDescriptor {
	return d.add(&MemberDescriptor{r: metadata.MemberReport{Name: name, Kind: metadata.MemberProperty, Scalar: kind}})
}

// Reference declares a stored field holding another entity.
func (d *Descriptor) Reference(name string, target reflect.Type) *MemberDescriptor {
	return d.add(&MemberDescriptor{r: metadata.MemberReport{Name: name, Kind: metadata.MemberField, Ref: target}})
}

// Method declares a behavior member. It carries metadata only.
func (d *Descriptor) Method(name string) *MemberDescriptor {
	return d.add(&MemberDescriptor{r: metadata.MemberReport{Name: name, Kind: metadata.MemberMethod}})
}

// Event declares a notification member. It carries metadata only.
func (d *Descriptor) Event(name string) *MemberDescriptor {
	return d.add(&MemberDescriptor{r: metadata.MemberReport{Name: name, Kind: metadata.MemberEvent}})
}

func (d *Descriptor) report() *metadata.TypeReport {
	rep := &metadata.TypeReport{
		Name:       d.name,
		Namespace:  d.namespace,
		Table:      d.table,
		Base:       d.base,
		SoftDelete: d.softDelete,
		Seeds:      d.seeds,
		Indexes:    d.indexes,
	}
	for _, m := range d.members {
		r := m.r
		r.Decorations = append([]any(nil), m.r.Decorations...)
		rep.Members = append(rep.Members, r)
	}
	return rep
}

// MemberDescriptor refines one declared member.
type MemberDescriptor struct {
	r metadata.MemberReport
}

// Key marks the member as part of the primary key.
func (m *MemberDescriptor) Key() *MemberDescriptor {
	m.r.Key = true
	return m
}

// AutoGenerated lets storage assign the value on insert.
func (m *MemberDescriptor) AutoGenerated() *MemberDescriptor {
	m.r.AutoGenerated = true
	return m
}

// Column overrides the storage column name.
func (m *MemberDescriptor) Column(name string) *MemberDescriptor {
	m.r.Column = name
	return m
}

// Static marks the member as type-level; static members hold no slot.
func (m *MemberDescriptor) Static() *MemberDescriptor {
	m.r.Static = true
	return m
}

// Validate attaches validation rules.
func (m *MemberDescriptor) Validate(rules ...any) *MemberDescriptor {
	m.r.Decorations = append(m.r.Decorations, rules...)
	return m
}

// Decorate attaches opaque decorations such as presentation hints.
func (m *MemberDescriptor) Decorate(decorations ...any) *MemberDescriptor {
	m.r.Decorations = append(m.r.Decorations, decorations...)
	return m
}
