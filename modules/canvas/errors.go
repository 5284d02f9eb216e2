package canvas

import (
	"errors"
	"fmt"

	domain "github.com/TaelanSakay/PlayGround/domain/canvas"
)

// ValidationError reports a malformed or incomplete payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing room or target element.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Unwrap maps the error onto the domain sentinel for errors.Is.
func (e *NotFoundError) Unwrap() error {
	if e.Resource == "element" {
		return domain.ErrElementNotFound
	}
	return domain.ErrRoomNotFound
}

// PersistenceError reports an unreachable store or an exhausted retry budget.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// userMessage turns a handler error into the text sent back to the client.
func userMessage(err error) string {
	var (
		verr *ValidationError
		nerr *NotFoundError
		perr *PersistenceError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &nerr):
		return nerr.Error()
	case errors.As(err, &perr):
		return "could not save changes, please retry"
	default:
		return err.Error()
	}
}
