package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input or a mismatched concrete type.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProgressNotCreated is returned when a store could not establish the initial progress record.
	ErrProgressNotCreated = errors.New("progress not created")
)
