/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package scalar

import "fmt"

// Op is a comparison operator shared by predicates and validators.
type Op int

const (
	OpEqual Op = iota
	OpNotEqual
	OpGreater
	OpGreaterOrEqual
	OpLess
	OpLessOrEqual
)

var opSymbols = map[Op]string{
	OpEqual:          "=",
	OpNotEqual:       "!=",
	OpGreater:        ">",
	OpGreaterOrEqual: ">=",
	OpLess:           "<",
	OpLessOrEqual:    "<=",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// ParseOp reads an operator symbol.
func ParseOp(s string) (Op, error) {
	for op, sym := range opSymbols {
		if sym == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown comparison operator %q", s)
}

// Satisfies evaluates "current op operand". Equality operators are defined
// for absent values; the four ordering operators are false whenever either
// side is absent or the two sides have no common ordering.
func Satisfies(op Op, current, operand any) bool {
	switch op {
	case OpEqual:
		return Equal(current, operand)
	case OpNotEqual:
		return !Equal(current, operand)
	}
	c, ok := Compare(current, operand)
	if !ok {
		return false
	}
	switch op {
	case OpGreater:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	case OpLess:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	}
	return false
}

// SatisfiesInt applies op to two integers, used for length comparisons.
func SatisfiesInt(op Op, current, operand int) bool {
	return Satisfies(op, current, operand)
}
