/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package testmodels

import (
	"fmt"
	"reflect"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/registry"
	"github.com/suparena/entitymap/scalar"
	"github.com/suparena/entitymap/validation"
)

// Country is a seeded lookup table with a natural string key.
type Country struct {
	Code string
	Name string
}

// Customer has an auto-generated key and an optional reference to a Country.
type Customer struct {
	Id        int64
	Name      string
	Email     string
	Country   *Country
	CreatedAt *strfmt.DateTime
}

// Person is the root of a three level hierarchy with logical delete.
type Person struct {
	Id      int64
	Name    string
	Deleted bool
}

type Employee struct {
	Person
	Salary  float64
	Manager *Employee
}

type Manager struct {
	Employee
	Budget float64
}

// Vehicle and Truck form a hierarchy without logical delete.
type Vehicle struct {
	Plate string
	Make  string
}

type Truck struct {
	Vehicle
	Payload float64
}

// Order is keyed by a generated UUID.
type Order struct {
	Id       uuid.UUID
	Customer *Customer
	Placed   strfmt.DateTime
	Total    float64
}

// OrderLine has a composite key made of its order and a line number.
type OrderLine struct {
	Order    *Order
	Line     int
	Product  string
	Quantity int
	Price    float64
}

// Document is soft deleted.
type Document struct {
	Id      int64
	Title   string
	Path    string
	Deleted bool
}

// Region, Nation, Province and Town form a chain of composite keys, each
// level keyed by its parent plus a code.
type Region struct {
	Code string
	Name string
}

type Nation struct {
	Region *Region
	Code   string
	Name   string
}

type Province struct {
	Nation *Nation
	Code   string
	Name   string
}

type Town struct {
	Province   *Province
	Name       string
	Population int
}

// Handler stores a Go type, which only in-process backends can hold.
type Handler struct {
	Name string
	Impl reflect.Type
}

// Register declares every model in r.
func Register(r *registry.Registry) {
	registry.Register[Country](r, func(d *registry.Descriptor) {
		d.Field("Code", scalar.String).Key().Validate(validation.StringLength(scalar.OpEqual, 2, false))
		d.Field("Name", scalar.String).Validate(validation.Required())
		d.Seed(map[string]any{"Code": "US", "Name": "United States"})
		d.Seed(map[string]any{"Code": "FR", "Name": "France"})
		d.Seed(map[string]any{"Code": "JP", "Name": "Japan"})
	})
	registry.Register[Customer](r, func(d *registry.Descriptor) {
		d.Field("Id", scalar.Int64).Key().AutoGenerated()
		d.Field("Name", scalar.String).Validate(validation.Required(), validation.StringLength(scalar.OpLessOrEqual, 50, false))
		d.Field("Email", scalar.String).Validate(validation.Tag("email"))
		d.Reference("Country", reflect.TypeFor[Country]())
		d.Field("CreatedAt", scalar.DateTime)
		d.Index("Name")
		d.UniqueIndex("Email")
	})

	registry.Register[Person](r, func(d *registry.Descriptor) {
		d.Field("Id", scalar.Int64).Key().AutoGenerated()
		d.Field("Name", scalar.String).Validate(validation.Required())
		d.Field("Deleted", scalar.Bool)
		d.SoftDelete("Deleted")
		d.Method("Greet")
	})
	registry.Register[Employee](r, func(d *registry.Descriptor) {
		d.Extends(reflect.TypeFor[Person]())
		d.Field("Salary", scalar.Float).Validate(validation.Range(0, 1_000_000))
		d.Reference("Manager", reflect.TypeFor[Employee]())
	})
	registry.Register[Manager](r, func(d *registry.Descriptor) {
		d.Extends(reflect.TypeFor[Employee]())
		d.Field("Budget", scalar.Float)
	})

	registry.Register[Vehicle](r, func(d *registry.Descriptor) {
		d.Field("Plate", scalar.String).Key()
		d.Field("Make", scalar.String).Validate(validation.Required())
	})
	registry.Register[Truck](r, func(d *registry.Descriptor) {
		d.Extends(reflect.TypeFor[Vehicle]())
		d.Field("Payload", scalar.Float)
	})

	registry.Register[Order](r, func(d *registry.Descriptor) {
		d.Field("Id", scalar.UUID).Key().AutoGenerated()
		d.Reference("Customer", reflect.TypeFor[Customer]()).Validate(validation.Required())
		d.Field("Placed", scalar.DateTime)
		d.Field("Total", scalar.Float)
	})
	registry.Register[OrderLine](r, func(d *registry.Descriptor) {
		d.Reference("Order", reflect.TypeFor[Order]()).Key()
		d.Field("Line", scalar.Int).Key()
		d.Field("Product", scalar.String).Validate(validation.Required())
		d.Field("Quantity", scalar.Int).Validate(validation.Compare(scalar.OpGreater, 0))
		d.Field("Price", scalar.Float)
	})

	registry.Register[Document](r, func(d *registry.Descriptor) {
		d.Field("Id", scalar.Int64).Key().AutoGenerated()
		d.Field("Title", scalar.String).Validate(validation.Required())
		d.Field("Path", scalar.String).Validate(validation.PathExists())
		d.Field("Deleted", scalar.Bool)
		d.SoftDelete("Deleted")
	})

	registry.Register[Region](r, func(d *registry.Descriptor) {
		d.Field("Code", scalar.String).Key()
		d.Field("Name", scalar.String)
	})
	registry.Register[Nation](r, func(d *registry.Descriptor) {
		d.Reference("Region", reflect.TypeFor[Region]()).Key()
		d.Field("Code", scalar.String).Key()
		d.Field("Name", scalar.String)
	})
	registry.Register[Province](r, func(d *registry.Descriptor) {
		d.Reference("Nation", reflect.TypeFor[Nation]()).Key()
		d.Field("Code", scalar.String).Key()
		d.Field("Name", scalar.String)
	})
	registry.Register[Town](r, func(d *registry.Descriptor) {
		d.Reference("Province", reflect.TypeFor[Province]()).Key()
		d.Field("Name", scalar.String).Key()
		d.Field("Population", scalar.Int)
	})

	registry.Register[Handler](r, func(d *registry.Descriptor) {
		d.Field("Name", scalar.String).Key()
		d.Field("Impl", scalar.Type).Validate(validation.SubclassOf(reflect.TypeFor[fmt.Stringer]()))
	})

	registry.Register[RatingSystem](r, describeRatingSystem)
}

// Catalog returns a catalog over a fresh registry holding every model.
func Catalog(opts ...metadata.Option) *metadata.Catalog {
	r := registry.New()
	Register(r)
	return metadata.NewCatalog(r, opts...)
}

// MustType resolves T in cat, panicking on failure.
func MustType[T any](cat *metadata.Catalog) *metadata.EntityType {
	return cat.MustTypeOf(reflect.TypeFor[T]())
}
