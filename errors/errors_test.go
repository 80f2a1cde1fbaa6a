/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("Customer", "Id=123")

	expected := `Customer with key "Id=123" not found`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}

	if !IsNotFound(err) {
		t.Error("IsNotFound should return true for NotFoundError")
	}
}

func TestAlreadyExistsError(t *testing.T) {
	err := NewAlreadyExistsError("Product", "Sku=ABC")

	expected := `Product with key "Sku=ABC" already exists`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsAlreadyExists(err) {
		t.Error("IsAlreadyExists should return true for AlreadyExistsError")
	}
}

func TestConstraintError(t *testing.T) {
	tests := []struct {
		name     string
		column   string
		expected string
	}{
		{
			name:     "with column",
			column:   "Name",
			expected: "constraint violated on customers.Name: value is required",
		},
		{
			name:     "without column",
			column:   "",
			expected: "constraint violated on customers: value is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConstraintError("customers", tt.column, "value is required")

			if err.Error() != tt.expected {
				t.Errorf("Expected error message %q, got %q", tt.expected, err.Error())
			}

			if !IsConstraint(err) {
				t.Error("IsConstraint should return true for ConstraintError")
			}
		})
	}
}

func TestConditionFailedError(t *testing.T) {
	err := NewConditionFailedError("commit", "no transaction in progress")

	expected := "condition check failed for commit operation: no transaction in progress"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !IsConditionFailed(err) {
		t.Error("IsConditionFailed should return true for ConditionFailedError")
	}
}

func TestMemberNotFoundCarriesName(t *testing.T) {
	err := NewMemberNotFoundError("Customer", "Nmae")

	if !IsMemberNotFound(err) {
		t.Fatal("IsMemberNotFound should return true")
	}

	var mnf *MemberNotFoundError
	if !errors.As(err, &mnf) || mnf.Member != "Nmae" {
		t.Errorf("Expected attempted member name to be carried, got %+v", mnf)
	}
}

func TestUnsupportedTypeForBackendUnwraps(t *testing.T) {
	cause := NewNotFoundError("table", "customers")
	err := NewUnsupportedTypeForBackendError("Customer", "memory", cause)

	if !IsUnsupportedTypeForBackend(err) {
		t.Error("IsUnsupportedTypeForBackend should return true")
	}
	if !IsNotFound(err) {
		t.Error("cause should be reachable through Unwrap")
	}
}

func TestValidationFailure(t *testing.T) {
	violations := []Violation{
		{Member: "Name", Message: "Name cannot be empty"},
		{Member: "Email", Message: "Email is not valid"},
	}
	err := fmt.Errorf("insert: %w", NewValidationFailure("Customer", "insert", violations, "instance"))

	if !IsValidationFailure(err) {
		t.Fatal("IsValidationFailure should work through wrapping")
	}

	got := Violations(err)
	if len(got) != 2 || got[0].Message != "Name cannot be empty" {
		t.Errorf("Unexpected violations: %+v", got)
	}

	expected := "insert: validation failed for insert of Customer: Name cannot be empty; Email is not valid"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
}

func TestFormatAndTypeMismatch(t *testing.T) {
	if !IsFormat(NewFormatError("a%bc", "wildcard in the middle")) {
		t.Error("IsFormat should return true for FormatError")
	}
	if !IsTypeMismatch(NewTypeMismatchError("model.Customer", "model.Order")) {
		t.Error("IsTypeMismatch should return true for TypeMismatchError")
	}
}

func TestErrorWrapping(t *testing.T) {
	original := NewNotFoundError("Customer", "Id=123")
	wrapped := fmt.Errorf("select failed: %w", original)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("Wrapped NotFoundError should still match ErrNotFound")
	}

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should work with wrapped errors")
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrConstraint,
		ErrConditionFailed,
		ErrInvalidStructuralType,
		ErrMemberNotFound,
		ErrUnsupportedTypeForBackend,
		ErrValidationFailed,
		ErrFormat,
		ErrTypeMismatch,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v matches %v", err1, err2)
			}
		}
	}
}
