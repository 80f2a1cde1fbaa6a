/*
Package entity implements the live record model: an Instance bound to one
metadata.EntityType, holding one slot per stored member.

Slots hold canonical scalars (see package scalar) or nil; reference members
hold a nested *Instance. Key members that reference another entity start out
as an empty nested instance so their components can be filled in place:

	line := entity.New(orderLineType)
	order, _ := line.Ref("Order")
	order.MustSet("Number", 42)
	line.MustSet("Position", 1)

Instances convert to and from a compact string form

	DataType=example.com/shop.OrderLine&Order_Number=42&Position=1

and a structured XML document with one element per atomized column. Equality
and Hash consider the atomized primary key only, so two instances of related
types denote the same record when their keys agree.

Validate runs the primary-key rule and every Validator decoration attached
to a regular member; it reports violations and never fails.
*/
package entity
