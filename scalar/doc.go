/*
Package scalar defines the scalar kinds an entity value member can hold and
the conventions every other package relies on for them.

A slot with no value holds nil for every kind; there are no reserved
in-band sentinel values, so the minimum integer or the zero time are
ordinary values. Canonical Go representations per kind:

	String   -> string
	Int      -> int
	Int64    -> int64
	Float    -> float64
	Bool     -> bool
	DateTime -> strfmt.DateTime
	UUID     -> uuid.UUID
	Type     -> reflect.Type   (no string form)

Format and Parse are exact inverses for every kind except Type. Compare
provides the ordering contract used by range checks, ordering predicates and
result sorting; Satisfies evaluates the six comparison operators with the
absent-value rules shared by predicates and validators.
*/
package scalar
