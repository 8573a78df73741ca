package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Seat failure reasons reported by a reservation attempt.
const (
	ReasonSeatAlreadyBooked = "seat already booked"
	ReasonSeatNotFound      = "seat not found"
)

// SeatFailure is one seat that could not be reserved.
type SeatFailure struct {
	SeatNo string `json:"seat_no"`
	Reason string `json:"reason"`
}

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e NotFoundError) Error() string {
	switch {
	case e.Resource != "" && e.ID != "":
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	case e.Resource != "":
		return fmt.Sprintf("%s not found", e.Resource)
	default:
		return "not found"
	}
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ConflictError carries per-seat failures when a reservation could not be granted.
type ConflictError struct {
	Resource string
	Msg      string
	Failures []SeatFailure
	Err      error
}

func (e ConflictError) Error() string {
	msg := e.Msg
	if msg == "" && len(e.Failures) > 0 {
		parts := make([]string, 0, len(e.Failures))
		for _, f := range e.Failures {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.SeatNo, f.Reason))
		}
		msg = "seats unavailable: " + strings.Join(parts, ", ")
	}
	switch {
	case msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, msg)
	case msg != "":
		return msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// PersistenceError aborts the surrounding transaction. Callers may retry the whole request.
type PersistenceError struct {
	Op  string
	Msg string
	Err error
}

func (e PersistenceError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "persistence failure"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e PersistenceError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may resubmit the same request.
func (e PersistenceError) Retryable() bool { return true }

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target PersistenceError
	return errors.As(err, &target)
}

// AsConflict returns the conflict in err's chain, if any.
func AsConflict(err error) (ConflictError, bool) {
	var target ConflictError
	ok := errors.As(err, &target)
	return target, ok
}
