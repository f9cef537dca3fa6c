package library

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates input that fails structural validation before any write.
	ErrValidation = errors.New("library: validation failed")
	// ErrConflict indicates a uniqueness violation such as a sibling slug collision or duplicate placement.
	ErrConflict = errors.New("library: conflict")
	// ErrNotEmpty indicates a folder delete blocked by remaining placements.
	ErrNotEmpty = errors.New("library: folder not empty")
	// ErrForbidden indicates an operation the owner may never perform, such as deleting the root folder.
	ErrForbidden = errors.New("library: forbidden")
	// ErrNotFound indicates a missing folder, book, or unresolvable slug path.
	ErrNotFound = errors.New("library: not found")
	// ErrStore wraps an underlying storage failure; the cause is attached, never retried here.
	ErrStore = errors.New("library: store failure")
)

// ServiceError carries an operation.reason code alongside the wrapped cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier attached to the failure.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

func storeFailure(operation, reason string, cause error) error {
	return newServiceError(operation, reason, fmt.Errorf("%w: %v", ErrStore, cause))
}
