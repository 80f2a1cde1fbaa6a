/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package scalar

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Kind identifies the storage shape of a scalar value member.
type Kind int

const (
	Invalid Kind = iota
	String
	Int
	Int64
	Float
	Bool
	DateTime
	UUID
	Type
)

var kindNames = map[Kind]string{
	Invalid:  "invalid",
	String:   "string",
	Int:      "int",
	Int64:    "int64",
	Float:    "float",
	Bool:     "bool",
	DateTime: "datetime",
	UUID:     "uuid",
	Type:     "type",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsNumeric reports whether values of the kind are ordered numbers.
func (k Kind) IsNumeric() bool {
	return k == Int || k == Int64 || k == Float
}

// IsText reports whether values of the kind are strings.
func (k Kind) IsText() bool {
	return k == String
}

// Representable reports whether the kind has a round-trip string form.
func (k Kind) Representable() bool {
	return k != Invalid && k != Type
}

var (
	dateTimeType = reflect.TypeOf(strfmt.DateTime{})
	timeType     = reflect.TypeOf(time.Time{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	typeType     = reflect.TypeOf((*reflect.Type)(nil)).Elem()
)

// KindOf maps a Go type onto a scalar kind. Pointer types map onto the kind
// of their element so optional struct fields bind naturally.
func KindOf(rt reflect.Type) (Kind, bool) {
	if rt == nil {
		return Invalid, false
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	switch rt {
	case dateTimeType, timeType:
		return DateTime, true
	case uuidType:
		return UUID, true
	case typeType:
		return Type, true
	}
	switch rt.Kind() {
	case reflect.String:
		return String, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return Int, true
	case reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int64, true
	case reflect.Float32, reflect.Float64:
		return Float, true
	case reflect.Bool:
		return Bool, true
	}
	return Invalid, false
}

// Null returns the "no value" marker for a kind. Every kind shares the same
// marker: an empty slot.
func Null(Kind) any {
	return nil
}

// IsNull reports whether v is the "no value" marker.
func IsNull(v any) bool {
	return v == nil
}

// IsBlank reports whether v is absent or a whitespace-only string.
func IsBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Coerce converts v into the canonical Go representation of kind k:
// string, int, int64, float64, bool, strfmt.DateTime, uuid.UUID or
// reflect.Type. A nil v stays nil.
func Coerce(k Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		if _, isType := v.(reflect.Type); !isType {
			return Coerce(k, rv.Elem().Interface())
		}
	}

	switch k {
	case String:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case Int:
		if i, ok := toInt64(rv); ok {
			if i < math.MinInt || i > math.MaxInt {
				return nil, fmt.Errorf("value %d overflows int", i)
			}
			return int(i), nil
		}
	case Int64:
		if i, ok := toInt64(rv); ok {
			return i, nil
		}
	case Float:
		if f, ok := toFloat64(rv); ok {
			return f, nil
		}
	case Bool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case DateTime:
		switch t := v.(type) {
		case strfmt.DateTime:
			return t, nil
		case time.Time:
			return strfmt.DateTime(t), nil
		case string:
			return Parse(DateTime, t)
		}
	case UUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u, nil
		case string:
			return Parse(UUID, u)
		}
	case Type:
		if t, ok := v.(reflect.Type); ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, k)
}

func toInt64(rv reflect.Value) (int64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat64(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	if i, ok := toInt64(rv); ok {
		return float64(i), true
	}
	return 0, false
}

// Format renders a canonical value in its round-trip string form.
func Format(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case strfmt.DateTime:
		return time.Time(t).UTC().Format(time.RFC3339Nano), nil
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano), nil
	case uuid.UUID:
		return t.String(), nil
	}
	return "", fmt.Errorf("value of type %T has no string form", v)
}

// MustFormat is Format for values already known to be canonical.
func MustFormat(v any) string {
	s, err := Format(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// Parse is the inverse of Format for kind k.
func Parse(k Kind, s string) (any, error) {
	switch k {
	case String:
		return s, nil
	case Int:
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		return i, nil
	case Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		return i, nil
	case Float:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		return f, nil
	case Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		return b, nil
	case DateTime:
		dt, err := strfmt.ParseDateTime(s)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		return dt, nil
	case UUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", k, err)
		}
		return u, nil
	}
	return nil, fmt.Errorf("kind %s has no string form", k)
}

// Compare orders two non-nil values. ok is false when the values have no
// common ordering, or when either is a float NaN.
func Compare(a, b any) (c int, ok bool) {
	if a == nil || b == nil {
		return 0, false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ia, okA := toInt64(ra); okA {
		if ib, okB := toInt64(rb); okB {
			return cmpOrdered(ia, ib), true
		}
	}
	if fa, okA := toFloat64(ra); okA {
		if fb, okB := toFloat64(rb); okB {
			if math.IsNaN(fa) || math.IsNaN(fb) {
				return 0, false
			}
			return cmpOrdered(fa, fb), true
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpBool(x, y), true
		}
	case strfmt.DateTime, time.Time:
		ta, _ := asTime(a)
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb), true
		}
	case uuid.UUID:
		if y, ok := b.(uuid.UUID); ok {
			return bytes.Compare(x[:], y[:]), true
		}
	}
	return 0, false
}

// Equal reports whether two values are the same scalar. Two absent values
// are equal; an absent value never equals a present one.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// EqualFold is Equal with case-insensitive string comparison.
func EqualFold(a, b any) bool {
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.EqualFold(sa, sb)
		}
	}
	return Equal(a, b)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case strfmt.DateTime:
		return time.Time(t), true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
