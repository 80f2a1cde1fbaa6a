/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a row or entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to insert a row whose key is taken
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrConstraint is returned when a row violates a storage constraint
	ErrConstraint = errors.New("constraint violated")

	// ErrConditionFailed is returned when an operation is not allowed in the current state
	ErrConditionFailed = errors.New("condition check failed")

	// ErrInvalidStructuralType is returned when a type is not a recognized entity type
	ErrInvalidStructuralType = errors.New("invalid structural type")

	// ErrMemberNotFound is returned when a member name does not exist on an entity type
	ErrMemberNotFound = errors.New("member not found")

	// ErrUnsupportedTypeForBackend is returned when a backend cannot serve an entity type
	ErrUnsupportedTypeForBackend = errors.New("unsupported type for backend")

	// ErrValidationFailed is returned when an instance fails validation before a write
	ErrValidationFailed = errors.New("validation failed")

	// ErrFormat is returned for malformed input such as a misplaced pattern wildcard
	ErrFormat = errors.New("format error")

	// ErrTypeMismatch is returned when a document names a different entity type than expected
	ErrTypeMismatch = errors.New("type mismatch")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when an entity already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ConstraintError represents a row rejected by a table constraint
type ConstraintError struct {
	Table   string
	Column  string
	Message string
}

func (e *ConstraintError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("constraint violated on %s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("constraint violated on %s: %s", e.Table, e.Message)
}

func (e *ConstraintError) Is(target error) bool {
	return target == ErrConstraint
}

// ConditionFailedError represents an operation attempted in the wrong state
type ConditionFailedError struct {
	Operation string
	Condition string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// InvalidStructuralTypeError is returned when metadata is requested for a type
// that cannot be mapped.
type InvalidStructuralTypeError struct {
	Type   string
	Reason string
}

func (e *InvalidStructuralTypeError) Error() string {
	return fmt.Sprintf("%s is not a valid entity type: %s", e.Type, e.Reason)
}

func (e *InvalidStructuralTypeError) Is(target error) bool {
	return target == ErrInvalidStructuralType
}

// MemberNotFoundError carries the name that failed to resolve.
type MemberNotFoundError struct {
	Type   string
	Member string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("%s has no member named %q", e.Type, e.Member)
}

func (e *MemberNotFoundError) Is(target error) bool {
	return target == ErrMemberNotFound
}

// UnsupportedTypeForBackendError reports an entity type a backend failed to serve.
type UnsupportedTypeForBackendError struct {
	Type    string
	Backend string
	Err     error
}

func (e *UnsupportedTypeForBackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("type %s is not supported by backend %s: %v", e.Type, e.Backend, e.Err)
	}
	return fmt.Sprintf("type %s is not supported by backend %s", e.Type, e.Backend)
}

func (e *UnsupportedTypeForBackendError) Is(target error) bool {
	return target == ErrUnsupportedTypeForBackend
}

func (e *UnsupportedTypeForBackendError) Unwrap() error {
	return e.Err
}

// Violation is one failed validation rule on one member.
type Violation struct {
	Member  string
	Message string
}

func (v Violation) String() string {
	return v.Message
}

// ValidationFailure carries every violation found on an instance, together
// with the instance itself.
type ValidationFailure struct {
	Type       string
	Operation  string
	Violations []Violation
	Instance   any
}

func (e *ValidationFailure) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return fmt.Sprintf("validation failed for %s of %s: %s", e.Operation, e.Type, strings.Join(msgs, "; "))
}

func (e *ValidationFailure) Is(target error) bool {
	return target == ErrValidationFailed
}

// FormatError represents malformed input text.
type FormatError struct {
	Input   string
	Message string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid format %q: %s", e.Input, e.Message)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// TypeMismatchError is returned when a document names an unexpected type.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, key string) error {
	return &NotFoundError{Type: entityType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(entityType, key string) error {
	return &AlreadyExistsError{Type: entityType, Key: key}
}

// NewConstraintError creates a new ConstraintError
func NewConstraintError(table, column, message string) error {
	return &ConstraintError{Table: table, Column: column, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// NewInvalidStructuralTypeError creates a new InvalidStructuralTypeError
func NewInvalidStructuralTypeError(typeName, reason string) error {
	return &InvalidStructuralTypeError{Type: typeName, Reason: reason}
}

// NewMemberNotFoundError creates a new MemberNotFoundError
func NewMemberNotFoundError(typeName, member string) error {
	return &MemberNotFoundError{Type: typeName, Member: member}
}

// NewUnsupportedTypeForBackendError creates a new UnsupportedTypeForBackendError
func NewUnsupportedTypeForBackendError(typeName, backend string, cause error) error {
	return &UnsupportedTypeForBackendError{Type: typeName, Backend: backend, Err: cause}
}

// NewValidationFailure creates a new ValidationFailure
func NewValidationFailure(typeName, operation string, violations []Violation, instance any) error {
	return &ValidationFailure{Type: typeName, Operation: operation, Violations: violations, Instance: instance}
}

// NewFormatError creates a new FormatError
func NewFormatError(input, message string) error {
	return &FormatError{Input: input, Message: message}
}

// NewTypeMismatchError creates a new TypeMismatchError
func NewTypeMismatchError(expected, actual string) error {
	return &TypeMismatchError{Expected: expected, Actual: actual}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConstraint checks if an error is a constraint error
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsInvalidStructuralType checks if an error is an invalid structural type error
func IsInvalidStructuralType(err error) bool {
	return errors.Is(err, ErrInvalidStructuralType)
}

// IsMemberNotFound checks if an error is a member not found error
func IsMemberNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound)
}

// IsUnsupportedTypeForBackend checks if an error is an unsupported type error
func IsUnsupportedTypeForBackend(err error) bool {
	return errors.Is(err, ErrUnsupportedTypeForBackend)
}

// IsValidationFailure checks if an error is a validation failure
func IsValidationFailure(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

// IsFormat checks if an error is a format error
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsTypeMismatch checks if an error is a type mismatch error
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// Violations extracts the violation list from a ValidationFailure anywhere in
// the error chain.
func Violations(err error) []Violation {
	var vf *ValidationFailure
	if errors.As(err, &vf) {
		return vf.Violations
	}
	return nil
}
