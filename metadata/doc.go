/*
Package metadata builds and caches the structural model of entity types.

A Catalog asks a Reflector for one TypeReport per inheritance level and
assembles an EntityType: the ordered member list (inherited members first,
shared with the base type), the primary key declared by the inheritance root,
the resolved table name and the atomized key.

	cat := metadata.NewCatalog(reg, metadata.WithNaming(metadata.NamingQualified))
	customer, err := metadata.TypeFor[model.Customer](cat)
	if err != nil {
	    return err
	}
	for _, atom := range customer.KeyAtoms() {
	    fmt.Println(atom.Name)
	}

Atomization flattens reference members into the referenced type's primary
key, prefixing "<column>_" at every level. Reference cycles through key paths
are rejected when the type is built.

The catalog is safe for concurrent use. Published types are immutable and
looked up without locking; building is serialized and a failed build
publishes nothing.
*/
package metadata
