/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package predicate

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/suparena/entitymap/errors"
	"github.com/suparena/entitymap/metadata"
	"github.com/suparena/entitymap/scalar"
)

// Declarations returns the AIP-160 filter declarations for the scalar
// members of t.
func Declarations(t *metadata.EntityType) (*filtering.Declarations, error) {
	decls := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for _, m := range t.Values() {
		if m.IsReference() {
			continue
		}
		switch m.Scalar() {
		case scalar.String, scalar.UUID:
			decls = append(decls, filtering.DeclareIdent(m.Name(), filtering.TypeString))
		case scalar.Int, scalar.Int64:
			decls = append(decls, filtering.DeclareIdent(m.Name(), filtering.TypeInt))
		case scalar.Float:
			decls = append(decls, filtering.DeclareIdent(m.Name(), filtering.TypeFloat))
		case scalar.Bool:
			decls = append(decls, filtering.DeclareIdent(m.Name(), filtering.TypeBool))
		case scalar.DateTime:
			decls = append(decls, filtering.DeclareIdent(m.Name(), filtering.TypeTimestamp))
		}
	}
	return filtering.NewDeclarations(decls...)
}

// Parse reads an AIP-160 filter such as
//
//	Name = "Ada*" AND (Age >= 18 OR NOT Active)
//
// into a predicate over t. String literals containing "*" become patterns,
// with "*" playing the role of the "%" wildcard. An empty filter matches
// everything.
func Parse(t *metadata.EntityType, filter string) (Predicate, error) {
	if strings.TrimSpace(filter) == "" {
		return All(), nil
	}

	decls, err := Declarations(t)
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}

	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return nil, errors.NewFormatError(filter, err.Error())
	}

	return translateExpr(t, parsed.CheckedExpr.GetExpr())
}

func translateExpr(t *metadata.EntityType, e *expr.Expr) (Predicate, error) {
	if e == nil {
		return All(), nil
	}

	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_CallExpr:
		return translateCall(t, kind.CallExpr)
	case *expr.Expr_IdentExpr:
		// a bare boolean member
		return Eq(kind.IdentExpr.GetName(), true), nil
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(t *metadata.EntityType, call *expr.Expr_Call) (Predicate, error) {
	switch call.GetFunction() {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		items, err := translateArgs(t, call.GetArgs())
		if err != nil {
			return nil, err
		}
		return All(items...), nil
	case filtering.FunctionOr:
		items, err := translateArgs(t, call.GetArgs())
		if err != nil {
			return nil, err
		}
		return Any(items...), nil
	case filtering.FunctionNot:
		if len(call.GetArgs()) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		item, err := translateExpr(t, call.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		return &Not{Item: item}, nil
	}

	op, err := scalar.ParseOp(call.GetFunction())
	if err != nil {
		return nil, fmt.Errorf("unsupported function: %s", call.GetFunction())
	}
	return translateComparison(t, call.GetArgs(), op)
}

func translateArgs(t *metadata.EntityType, args []*expr.Expr) ([]Predicate, error) {
	items := make([]Predicate, 0, len(args))
	for _, arg := range args {
		p, err := translateExpr(t, arg)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, nil
}

func translateComparison(t *metadata.EntityType, args []*expr.Expr, op scalar.Op) (Predicate, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	m, err := t.Value(field)
	if err != nil {
		return nil, err
	}

	if other, err := extractFieldName(args[1]); err == nil {
		if _, err := t.Value(other); err != nil {
			return nil, err
		}
		return CompareMembers(field, op, other), nil
	}

	value, err := extractValue(args[1])
	if err != nil {
		return nil, err
	}

	if s, ok := value.(string); ok && m.Scalar() == scalar.String && strings.Contains(s, "*") {
		if op != scalar.OpEqual && op != scalar.OpNotEqual {
			return nil, errors.NewFormatError(s, "wildcards need = or !=")
		}
		p, err := Like(field, strings.ReplaceAll(s, "*", "%"))
		if err != nil {
			return nil, err
		}
		if op == scalar.OpNotEqual {
			return &Not{Item: p}, nil
		}
		return p, nil
	}

	if m.Scalar() == scalar.DateTime {
		if s, ok := value.(string); ok {
			if value, err = scalar.Parse(scalar.DateTime, s); err != nil {
				return nil, errors.NewFormatError(s, err.Error())
			}
		}
	}
	return &Compare{Member: field, Op: op, Value: value}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.GetName(), nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.GetFunction() == filtering.FunctionTimestamp && len(kind.CallExpr.GetArgs()) == 1 {
			return extractValue(kind.CallExpr.GetArgs()[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.GetFunction())
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}
