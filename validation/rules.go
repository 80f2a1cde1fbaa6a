/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/suparena/entitymap/entity"
	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Rule is a validation rule attached to a value member.
type Rule = entity.Validator

// ApplicationRoot anchors relative paths checked by PathExists.
var ApplicationRoot = "."

func violation(m *metadata.ValueMember, format string, args ...any) *errors.Violation {
	return &errors.Violation{Member: m.Name(), Message: fmt.Sprintf(format, args...)}
}

// RequiredRule fails for absent values and blank strings.
type RequiredRule struct{}

// Required returns a rule rejecting absent values and blank strings.
func Required() RequiredRule { return RequiredRule{} }

func (RequiredRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	if scalar.IsBlank(inst.Get(m)) {
		return violation(m, "%s cannot be empty", m.Name())
	}
	return nil
}

// RequiresValue marks the storage column not-null.
func (RequiredRule) RequiresValue() bool { return true }

// RangeRule checks min <= value <= max.
type RangeRule struct {
	Min, Max any
}

// Range returns an inclusive range rule. Absent values fail it.
func Range(min, max any) RangeRule { return RangeRule{Min: min, Max: max} }

func (r RangeRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	v := inst.Get(m)
	if scalar.Satisfies(scalar.OpGreaterOrEqual, v, r.Min) && scalar.Satisfies(scalar.OpLessOrEqual, v, r.Max) {
		return nil
	}
	return violation(m, "%s must be between %v and %v", m.Name(), r.Min, r.Max)
}

// CompareRule checks the member against a constant or a sibling member.
type CompareRule struct {
	Op    scalar.Op
	Value any
	// Other names a sibling member compared against instead of Value.
	Other string
}

// Compare returns a rule checking "member op value".
func Compare(op scalar.Op, value any) CompareRule { return CompareRule{Op: op, Value: value} }

// CompareMember returns a rule checking "member op other member".
func CompareMember(op scalar.Op, other string) CompareRule { return CompareRule{Op: op, Other: other} }

func (r CompareRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	operand := r.Value
	label := fmt.Sprint(r.Value)
	if r.Other != "" {
		v, err := inst.Value(r.Other)
		if err != nil {
			return violation(m, "%s: %v", m.Name(), err)
		}
		operand, label = v, r.Other
	}
	if scalar.Satisfies(r.Op, inst.Get(m), operand) {
		return nil
	}
	return violation(m, "%s must be %s %s", m.Name(), r.Op, label)
}

// StringLengthRule compares a string's length in characters to a limit.
type StringLengthRule struct {
	Op         scalar.Op
	Length     int
	AllowEmpty bool
}

// StringLength returns a rule checking "len(member) op n". When allowEmpty is
// set, absent and empty strings pass regardless of the comparison.
func StringLength(op scalar.Op, n int, allowEmpty bool) StringLengthRule {
	return StringLengthRule{Op: op, Length: n, AllowEmpty: allowEmpty}
}

func (r StringLengthRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	s, _ := inst.Get(m).(string)
	if s == "" && r.AllowEmpty {
		return nil
	}
	if scalar.SatisfiesInt(r.Op, utf8.RuneCountInString(s), r.Length) {
		return nil
	}
	return violation(m, "%s length must be %s %d", m.Name(), r.Op, r.Length)
}

// MaxLength reports the upper bound the rule puts on the string, if any.
func (r StringLengthRule) MaxLength() (int, bool) {
	switch r.Op {
	case scalar.OpEqual, scalar.OpLessOrEqual:
		return r.Length, true
	case scalar.OpLess:
		return r.Length - 1, true
	}
	return 0, false
}

// PatternRule matches strings against a regular expression. Absent and blank
// values are skipped.
type PatternRule struct {
	re *regexp.Regexp
}

// Pattern compiles expr into a rule.
func Pattern(expr string) (PatternRule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return PatternRule{}, errors.NewFormatError(expr, err.Error())
	}
	return PatternRule{re: re}, nil
}

// MustPattern is Pattern for expressions known to compile.
func MustPattern(expr string) PatternRule {
	r, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return r
}

func (r PatternRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	v := inst.Get(m)
	if scalar.IsBlank(v) {
		return nil
	}
	s, err := scalar.Format(v)
	if err != nil || !r.re.MatchString(s) {
		return violation(m, "%s does not match %s", m.Name(), r.re)
	}
	return nil
}

// PathExistsRule requires a string naming an existing file or directory.
type PathExistsRule struct{}

// PathExists returns a rule resolving relative paths against ApplicationRoot.
// Blank values are skipped.
func PathExists() PathExistsRule { return PathExistsRule{} }

func (PathExistsRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	v := inst.Get(m)
	if scalar.IsBlank(v) {
		return nil
	}
	p, ok := v.(string)
	if !ok {
		return violation(m, "%s must be a path", m.Name())
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(ApplicationRoot, p)
	}
	if _, err := os.Stat(p); err != nil {
		return violation(m, "%s: path %q does not exist", m.Name(), p)
	}
	return nil
}

// SubclassOfRule requires a type-valued member to be, implement or embed a
// configured ancestor type.
type SubclassOfRule struct {
	Ancestor reflect.Type
}

// SubclassOf returns a rule checking type-valued members against ancestor.
// Absent values are skipped.
func SubclassOf(ancestor reflect.Type) SubclassOfRule { return SubclassOfRule{Ancestor: ancestor} }

func (r SubclassOfRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	v := inst.Get(m)
	if v == nil {
		return nil
	}
	rt, ok := v.(reflect.Type)
	if !ok || !derives(rt, r.Ancestor) {
		return violation(m, "%s must derive from %s", m.Name(), r.Ancestor)
	}
	return nil
}

func derives(rt, ancestor reflect.Type) bool {
	if rt == ancestor {
		return true
	}
	if ancestor.Kind() == reflect.Interface {
		return rt.Implements(ancestor) || reflect.PointerTo(rt).Implements(ancestor)
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == ancestor {
		return true
	}
	if rt.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Anonymous && derives(f.Type, ancestor) {
			return true
		}
	}
	return false
}

// CustomRule delegates to a callback.
type CustomRule struct {
	Check   func(value any, inst *entity.Instance) bool
	Message string
}

// Custom returns a rule failing with message whenever check returns false.
func Custom(check func(value any, inst *entity.Instance) bool, message string) CustomRule {
	return CustomRule{Check: check, Message: message}
}

func (r CustomRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	if r.Check(inst.Get(m), inst) {
		return nil
	}
	return &errors.Violation{Member: m.Name(), Message: r.Message}
}

var (
	tagValidatorOnce sync.Once
	tagValidator     *validator.Validate
)

func tags() *validator.Validate {
	tagValidatorOnce.Do(func() {
		tagValidator = validator.New()
	})
	return tagValidator
}

// TagRule checks the value with a go-playground validator tag such as
// "email" or "hostname|ip". Absent values are skipped.
type TagRule struct {
	Tag string
}

// Tag returns a rule for a validator tag expression.
func Tag(tag string) TagRule { return TagRule{Tag: tag} }

func (r TagRule) Validate(m *metadata.ValueMember, inst *entity.Instance) *errors.Violation {
	v := inst.Get(m)
	if v == nil {
		return nil
	}
	if err := tags().Var(v, r.Tag); err != nil {
		return violation(m, "%s failed %q validation", m.Name(), r.Tag)
	}
	return nil
}
