/*
Package entitymap persists Go structs described once, in a type registry, onto relational-style
storage without per-entity data-access code.

The library follows a describe → open → use workflow:
  - Describe: register each struct with its keys, references, validation rules and indexes
  - Open: build the catalog and wire the configured backend, logger and result cache
  - Use: typed repositories for everyday work, engine sessions for transactions and hooks

Key Features:
  - Table-per-type inheritance with reads resolved to the most derived type
  - Composite and foreign keys flattened into storage columns
  - Declarative validation run before every write
  - Before/After hooks at engine, type and instance scope
  - Logical deletion
  - In-memory and DynamoDB backends
  - Invalidate-on-write result cache with Prometheus counters

Basic Usage:

	reg := registry.New()
	registry.Register[Customer](reg, func(d *registry.Descriptor) {
		d.Field("Id", scalar.Int64).Key().AutoGenerated()
		d.Field("Name", scalar.String).Validate(validation.Required())
	})

	cfg, _ := config.Load("entitymap.yaml")
	store, err := entitymap.Open(ctx, cfg, reg)
	if err != nil {
		return err
	}
	if err := store.Setup(ctx); err != nil {
		return err
	}

	customers := entitymap.MustRepositoryFor[Customer](store)
	c := &Customer{Name: "Ada"}
	err = customers.Insert(ctx, c) // c.Id is filled in
	found, err := customers.Filter(ctx, `Name = "Ada"`)
*/
package entitymap
