/*
Package errors provides semantic error types for the entitymap engine.

The package defines the engine's error taxonomy with specific types that can be
checked using the standard errors.Is() function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound                  = errors.New("entity not found")
	    ErrAlreadyExists             = errors.New("entity already exists")
	    ErrConstraint                = errors.New("constraint violated")
	    ErrConditionFailed           = errors.New("condition check failed")
	    ErrInvalidStructuralType     = errors.New("invalid structural type")
	    ErrMemberNotFound            = errors.New("member not found")
	    ErrUnsupportedTypeForBackend = errors.New("unsupported type for backend")
	    ErrValidationFailed          = errors.New("validation failed")
	    ErrFormat                    = errors.New("format error")
	    ErrTypeMismatch              = errors.New("type mismatch")
	)

Usage:

	err := session.Insert(ctx, customer)
	if errors.IsValidationFailure(err) {
	    for _, v := range errors.Violations(err) {
	        fmt.Println(v.Member, v.Message)
	    }
	}

ValidationFailure is raised only by the before-write hooks of the engine;
validating an instance directly returns the violation list as data.
UnsupportedTypeForBackend is collected into a list by setup verification
instead of being raised on the first failure.
*/
package errors
