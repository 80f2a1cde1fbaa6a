/*
Package registry declares entity types statically for the metadata catalog.

A Registry maps Go types to descriptors built once at initialization, and
implements metadata.Reflector on top of them:

	reg := registry.New()
	registry.Register[Customer](reg, func(d *registry.Descriptor) {
	    d.Field("Id", scalar.Int64).Key().AutoGenerated()
	    d.Field("Name", scalar.String).Validate(validation.Required())
	    d.UniqueIndex("Name")
	})
	registry.Register[VipCustomer](reg, func(d *registry.Descriptor) {
	    d.Extends(reflect.TypeFor[Customer]())
	    d.Field("Discount", scalar.Float)
	})

	cat := metadata.NewCatalog(reg)

Each descriptor covers one inheritance level: a derived type declares only
its own members and names its base with Extends. Validation rules and opaque
decorations attach per member.

The registry is thread-safe and should be populated during initialization,
typically in init() functions or through generated code. Registering the
same type twice panics.
*/
package registry
