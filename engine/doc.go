/*
Package engine runs persistence operations for entity instances over a datastore.Backend.

An Engine binds a metadata catalog to a backend. Work happens in a Session, the unit-of-work
handle carrying the open transaction and the logical-delete visibility:

	eng := engine.New(memory.New(), catalog, engine.WithLogger(logger))
	s := eng.NewSession()
	if err := s.Setup(ctx, customerType, countryType); err != nil {
	    return err
	}

	c := entity.New(customerType).MustSet("Name", "Ada")
	if err := s.Insert(ctx, c); err != nil {
	    return err // errors.IsValidationFailure(err) when a rule is broken
	}
	found, err := s.Select(ctx, customerType, engine.Query{Filter: predicate.MustLike("Name", "%da%")})

# Events

Every operation is bracketed by Before and After hooks at three scopes, in this order: the
engine (Engine.Subscribe), the entity type and each of its ancestors, most derived first
(Engine.SubscribeType), then the instance (Instance.Subscribe). Writes validate the instance
at the start of the instance scope. A Before hook may set Event.Cancel; the operation then
does nothing further and, for selects, returns Event.Result.

# Inheritance

Types are stored table-per-type. Inserts write one row per level from the root down; reads
assemble a record from one row per level and resolve it to the most derived stored type;
deletes first remove rows of the same key in derived tables. Types with a soft-delete member
are flagged instead of removed, and selects skip flagged rows unless Session.ShowDeleted is
set.

Setup drops, creates, seeds, indexes and links tables in that order. VerifySetup reports one
error per type the backend cannot hold instead of stopping at the first.
*/
package engine
