/*
Package predicate provides composable filters over entity instances.

Trees are built from Compare, Pattern, In, ForeignKey, PrimaryKey, And, Or,
Not and Func nodes, or parsed from AIP-160 filter strings:

	p := predicate.All(
	    predicate.MustLike("Name", "%da%"),
	    predicate.Between("Age", 18, 65),
	)
	q, err := predicate.Parse(customerType, `Name = "Ada*" AND Age >= 18`)

An empty And matches every instance and an empty Or matches none. Patterns
accept a "%" wildcard only as the first or last character; any other
placement is a FormatError.
*/
package predicate
