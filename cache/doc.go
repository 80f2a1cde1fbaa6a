/*
Package cache keeps the results of unfiltered selects in memory and serves them again until a
write touches the entity type.

A Cache attaches to an engine as an engine-scope hook:

	c := cache.New(cache.WithLogger(logger))
	c.Attach(eng)

Only selects without a filter, projection or limit are cached, keyed by entity type, ordering
and logical-delete visibility. Selects inside an explicit transaction bypass the cache. A
successful insert, update or delete invalidates every entry of the inheritance family of its
type; commit, rollback and setup invalidate the families of the types they touched.

Each family carries a generation counter. A select records the generation before it reads
and stores its result only if no invalidation happened in between, so a read racing a write
cannot put the pre-write result back.
*/
package cache
