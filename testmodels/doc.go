// Package testmodels holds the entity models shared by the test suites: a
// seeded lookup table, an auto-keyed customer, a three level inheritance
// hierarchy with logical delete, composite and UUID keys, and a chain of
// nested composite keys.
package testmodels
