package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound reports that a referenced transaction, item, service, employee
// or room does not exist. Repositories translate pgx.ErrNoRows into it.
var ErrNotFound = errors.New("not found")

// ConflictError reports a double-booking. It carries the colliding booking's
// service name and window so cashiers see what is in the way.
type ConflictError struct {
	Resource    string // therapist, room or customer
	ServiceName string
	Start       time.Time
	End         time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already has a booking during this time: %s (%s - %s)",
		e.Resource, e.ServiceName, e.Start.Format("15:04"), e.End.Format("15:04"))
}

// InvalidStateError reports an operation attempted outside its allowed
// lifecycle state (editing a started item, double-starting, and so on).
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return e.Reason }

// ValidationError reports bad input: non-positive payment amounts, discounts
// exceeding cost, missing required fields.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsInvalidState(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
