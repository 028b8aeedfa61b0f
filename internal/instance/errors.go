// Package instance manages the live reactive instances of the graph:
// entities, relations and flows. Managers keep the behaviours of their
// instances in step with the instances' lifetimes: behaviours are added
// after an instance is registered and removed before it is deleted.
package instance

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is.
var (
	ErrNotFound         = errors.New("instance not found")
	ErrAlreadyExists    = errors.New("instance already exists")
	ErrEndpointNotFound = errors.New("relation endpoint not found")
	ErrEndpointType     = errors.New("relation endpoint type not accepted")
	ErrInUse            = errors.New("instance is referenced by a relation")
)

// Error reports a failed instance operation.
type Error struct {
	// Op is the operation, e.g. "create entity".
	Op string

	// ID identifies the instance the operation was applied to.
	ID string

	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, id fmt.Stringer, err error) error {
	return &Error{Op: op, ID: id.String(), Err: err}
}
