/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"fmt"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Validator is a rule attached to a value member as a decoration. It returns
// nil when the instance satisfies the rule.
type Validator interface {
	Validate(m *metadata.ValueMember, inst *Instance) *errors.Violation
}

// Validate runs the primary-key rule and, for inserts and updates, every
// validator attached to a regular member. All rules run; the result lists
// every violation found.
func (i *Instance) Validate(op Operation) []errors.Violation {
	var violations []errors.Violation

	keyAtoms := i.typ.KeyAtoms()
	for n, a := range i.KeyAtoms() {
		if keyAtoms[n].Path[0].IsAutoGenerated() {
			continue
		}
		if scalar.IsBlank(a.Value) {
			violations = append(violations, errors.Violation{
				Member:  a.Name,
				Message: fmt.Sprintf("%s is required as part of the primary key", a.Name),
			})
		}
	}

	if op != OpInsert && op != OpUpdate {
		return violations
	}
	for _, m := range i.typ.RegularValues() {
		for _, v := range metadata.Decorated[Validator](m) {
			if viol := v.Validate(m, i); viol != nil {
				violations = append(violations, *viol)
			}
		}
	}
	return violations
}
