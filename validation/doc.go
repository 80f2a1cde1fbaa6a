// Package validation provides declarative member rules. Rules attach to value
// members as decorations and run through entity.Instance.Validate:
//
//	d.Field("Name", scalar.String).Validate(
//	    validation.Required(),
//	    validation.StringLength(scalar.OpLessOrEqual, 64, false),
//	)
//	d.Field("Email", scalar.String).Validate(validation.Tag("email"))
//
// Required and StringLength also shape storage: required columns are
// not-null and length rules bound string columns.
package validation
