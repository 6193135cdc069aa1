package authz

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("authz: not found")
	ErrInvalidInput = errors.New("authz: invalid input")

	// ErrPermissionDenied is the sentinel every denial unwraps to.
	ErrPermissionDenied = errors.New("authz: permission denied")
)

// DeniedError names the missing permission so the rejection can be audited
// and surfaced to the client. Authentication failures stay uniform;
// authorization failures do not.
type DeniedError struct {
	Permission string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("authz: missing permission %q", e.Permission)
}

func (e *DeniedError) Unwrap() error {
	return ErrPermissionDenied
}
