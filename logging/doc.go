// Package logging builds the zerolog loggers handed to the engine, the backends and the cache.
package logging
