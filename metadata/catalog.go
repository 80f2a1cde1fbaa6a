/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package metadata

import (
	stderrors "errors"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/scalar"
)

// Naming selects how table names are derived when a type has no override.
type Naming int

const (
	// NamingBare uses the type name.
	NamingBare Naming = iota
	// NamingQualified prefixes the full namespace, separators replaced by "_".
	NamingQualified
	// NamingNamespace prefixes the last namespace segment.
	NamingNamespace
)

// ParseNaming reads a naming strategy name as used in configuration.
func ParseNaming(s string) (Naming, error) {
	switch strings.ToLower(s) {
	case "", "bare":
		return NamingBare, nil
	case "qualified":
		return NamingQualified, nil
	case "namespace":
		return NamingNamespace, nil
	}
	return NamingBare, fmt.Errorf("unknown naming strategy %q", s)
}

var qualifiedReplacer = strings.NewReplacer("/", "_", ".", "_", "-", "_")

func (n Naming) tableName(namespace, name string) string {
	switch n {
	case NamingQualified:
		if namespace == "" {
			return name
		}
		return qualifiedReplacer.Replace(namespace) + "_" + name
	case NamingNamespace:
		if namespace == "" {
			return name
		}
		return path.Base(strings.ReplaceAll(namespace, ".", "/")) + "_" + name
	}
	return name
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithNaming sets the table naming strategy.
func WithNaming(n Naming) Option {
	return func(c *Catalog) {
		c.naming = n
	}
}

// Catalog builds and caches entity types. Published types are immutable, so
// lookups are lock-free; builds are serialized.
type Catalog struct {
	reflector Reflector
	naming    Naming

	types *xsync.MapOf[reflect.Type, *EntityType]
	ids   *xsync.MapOf[string, *EntityType]

	buildMu sync.Mutex
}

// NewCatalog creates an empty catalog fed by r.
func NewCatalog(r Reflector, opts ...Option) *Catalog {
	c := &Catalog{
		reflector: r,
		types:     xsync.NewMapOf[reflect.Type, *EntityType](),
		ids:       xsync.NewMapOf[string, *EntityType](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Naming returns the configured naming strategy.
func (c *Catalog) Naming() Naming { return c.naming }

// TypeOf returns the entity type for rt, building it and everything it
// references on first use. Pointer types resolve to their element.
func (c *Catalog) TypeOf(rt reflect.Type) (*EntityType, error) {
	if rt == nil {
		return nil, errors.NewInvalidStructuralTypeError("<nil>", "no type")
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if t, ok := c.types.Load(rt); ok {
		return t, nil
	}

	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	if t, ok := c.types.Load(rt); ok {
		return t, nil
	}

	b := &builder{catalog: c, pending: map[reflect.Type]*EntityType{}}
	t, err := b.build(rt, map[reflect.Type]bool{})
	if err != nil {
		return nil, err
	}
	if err := b.resolve(); err != nil {
		return nil, err
	}
	for _, p := range b.order {
		if err := p.finish(); err != nil {
			return nil, err
		}
	}
	for _, p := range b.order {
		c.types.Store(p.rt, p)
		c.ids.Store(p.id, p)
	}
	return t, nil
}

// MustTypeOf is TypeOf for types registered at init time.
func (c *Catalog) MustTypeOf(rt reflect.Type) *EntityType {
	t, err := c.TypeOf(rt)
	if err != nil {
		panic(err)
	}
	return t
}

// TypeFor returns the entity type of T.
func TypeFor[T any](c *Catalog) (*EntityType, error) {
	return c.TypeOf(reflect.TypeOf((*T)(nil)).Elem())
}

// ByID returns a previously built type by identifier.
func (c *Catalog) ByID(id string) (*EntityType, bool) {
	return c.ids.Load(id)
}

// Types returns every built type ordered by identifier.
func (c *Catalog) Types() []*EntityType {
	var out []*EntityType
	c.types.Range(func(_ reflect.Type, t *EntityType) bool {
		out = append(out, t)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// InboundForeignKeys returns every reference member, on any built type, whose
// target t is assignable to. It scans the whole catalog.
func (c *Catalog) InboundForeignKeys(t *EntityType) []*ValueMember {
	var out []*ValueMember
	for _, other := range c.Types() {
		for _, m := range other.OwnValues() {
			if m.IsReference() && m.referenced.IsAssignableFrom(t) {
				out = append(out, m)
			}
		}
	}
	return out
}

// SubTypes returns the built types directly derived from t.
func (c *Catalog) SubTypes(t *EntityType) []*EntityType {
	var out []*EntityType
	for _, other := range c.Types() {
		if other.base == t {
			out = append(out, other)
		}
	}
	return out
}

// Descendants returns every built type derived from t, nearest first.
func (c *Catalog) Descendants(t *EntityType) []*EntityType {
	var out []*EntityType
	queue := c.SubTypes(t)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, c.SubTypes(next)...)
	}
	return out
}

type builder struct {
	catalog    *Catalog
	pending    map[reflect.Type]*EntityType
	order      []*EntityType
	unresolved []*ValueMember
}

func (b *builder) lookup(rt reflect.Type) (*EntityType, bool) {
	if t, ok := b.catalog.types.Load(rt); ok {
		return t, true
	}
	t, ok := b.pending[rt]
	return t, ok
}

// build creates the type and its ancestors. References are queued and
// resolved once the whole inheritance chain exists.
func (b *builder) build(rt reflect.Type, inProgress map[reflect.Type]bool) (*EntityType, error) {
	if t, ok := b.lookup(rt); ok {
		return t, nil
	}
	if inProgress[rt] {
		return nil, errors.NewInvalidStructuralTypeError(rt.String(), "inheritance cycle")
	}

	report, err := b.catalog.reflector.Describe(rt)
	if err != nil {
		if errors.IsInvalidStructuralType(err) {
			return nil, err
		}
		return nil, errors.NewInvalidStructuralTypeError(rt.String(), err.Error())
	}
	if report == nil {
		return nil, errors.NewInvalidStructuralTypeError(rt.String(), "not an entity type")
	}

	var base *EntityType
	if report.Base != nil {
		inProgress[rt] = true
		base, err = b.build(report.Base, inProgress)
		delete(inProgress, rt)
		if err != nil {
			return nil, err
		}
	}

	t := &EntityType{
		catalog:   b.catalog,
		rt:        rt,
		id:        typeID(rt),
		name:      report.Name,
		namespace: report.Namespace,
		base:      base,
		byName:    map[string]EntityMember{},
		seeds:     report.Seeds,
		indexes:   report.Indexes,
	}
	if t.name == "" {
		t.name = rt.Name()
	}
	if t.namespace == "" {
		t.namespace = rt.PkgPath()
	}
	t.table = report.Table
	if t.table == "" {
		t.table = b.catalog.naming.tableName(t.namespace, t.name)
	}

	if base != nil {
		t.members = append(t.members, base.members...)
		t.values = append(t.values, base.values...)
		for name, m := range base.byName {
			t.byName[name] = m
		}
		t.softDelete = base.softDelete
	}

	if err := b.declare(t, report); err != nil {
		return nil, err
	}

	b.pending[rt] = t
	b.order = append(b.order, t)
	return t, nil
}

func (b *builder) declare(t *EntityType, report *TypeReport) error {
	for _, mr := range report.Members {
		if mr.Kind == MemberNone {
			continue
		}
		if mr.Name == "" {
			return errors.NewInvalidStructuralTypeError(t.name, "member without a name")
		}
		if _, dup := t.byName[mr.Name]; dup {
			return errors.NewInvalidStructuralTypeError(t.name, fmt.Sprintf("duplicate member %q", mr.Name))
		}
		base := member{name: mr.Name, kind: mr.Kind, declaring: t, static: mr.Static, decorations: mr.Decorations}

		if !mr.Kind.IsValue() || mr.Static {
			bm := &BehaviorMember{member: base}
			t.members = append(t.members, bm)
			t.byName[mr.Name] = bm
			continue
		}

		if (mr.Ref == nil) == (mr.Scalar == scalar.Invalid) {
			return errors.NewInvalidStructuralTypeError(t.name,
				fmt.Sprintf("member %q must have exactly one of a scalar kind or a referenced type", mr.Name))
		}
		if mr.Key && t.base != nil {
			return errors.NewInvalidStructuralTypeError(t.name,
				fmt.Sprintf("derived type declares key member %q; keys belong to the inheritance root", mr.Name))
		}
		if mr.Key && mr.Scalar == scalar.Type {
			return errors.NewInvalidStructuralTypeError(t.name,
				fmt.Sprintf("key member %q has no string form", mr.Name))
		}

		vm := &ValueMember{
			member:  base,
			ordinal: len(t.values),
			key:     mr.Key,
			auto:    mr.AutoGenerated,
			column:  mr.Column,
			kind:    mr.Scalar,
			ref:     mr.Ref,
		}
		if vm.column == "" {
			vm.column = mr.Name
		}
		if vm.ref != nil && vm.ref.Kind() == reflect.Pointer {
			vm.ref = vm.ref.Elem()
		}
		t.members = append(t.members, vm)
		t.values = append(t.values, vm)
		t.byName[mr.Name] = vm
		if vm.ref != nil {
			b.unresolved = append(b.unresolved, vm)
		}
	}

	if report.SoftDelete != "" {
		m, ok := t.byName[report.SoftDelete].(*ValueMember)
		if !ok || m.kind != scalar.Bool {
			return errors.NewInvalidStructuralTypeError(t.name,
				fmt.Sprintf("soft-delete member %q must be a boolean value member", report.SoftDelete))
		}
		t.softDelete = m
	}

	for _, idx := range report.Indexes {
		for _, name := range idx.Members {
			if _, err := t.Value(name); err != nil {
				return errors.NewInvalidStructuralTypeError(t.name,
					fmt.Sprintf("index %q names unknown member %q", idx.Name, name))
			}
		}
	}
	return nil
}

// resolve builds referenced types until no reference is left dangling.
func (b *builder) resolve() error {
	for len(b.unresolved) > 0 {
		m := b.unresolved[0]
		b.unresolved = b.unresolved[1:]
		ref, err := b.build(m.ref, map[reflect.Type]bool{})
		if err != nil {
			var ist *errors.InvalidStructuralTypeError
			if stderrors.As(err, &ist) {
				return errors.NewInvalidStructuralTypeError(m.declaring.name,
					fmt.Sprintf("member %q references %s: %s", m.name, ist.Type, ist.Reason))
			}
			return err
		}
		m.referenced = ref
	}
	return nil
}

// finish runs the checks that need the complete graph and memoizes atoms.
func (t *EntityType) finish() error {
	if len(t.PrimaryKey()) == 0 {
		return errors.NewInvalidStructuralTypeError(t.name, "no primary key members")
	}
	var err error
	if t.keyAtoms, err = Atomize(t.PrimaryKey()); err != nil {
		return err
	}
	if t.valueAtoms, err = Atomize(t.values); err != nil {
		return err
	}
	for _, seed := range t.seeds {
		for name := range seed {
			if _, err := t.Value(name); err != nil {
				return errors.NewInvalidStructuralTypeError(t.name,
					fmt.Sprintf("seed row names unknown member %q", name))
			}
		}
	}
	return nil
}

func typeID(rt reflect.Type) string {
	if rt.PkgPath() == "" {
		return rt.String()
	}
	return rt.PkgPath() + "." + rt.Name()
}
