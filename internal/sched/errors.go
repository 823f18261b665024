package sched

import "errors"

var (
	// ErrInvalidArgument is wrapped by every caller-facing validation error.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrAlreadyInitialized = errors.New("scheduler already initialized")
	ErrInvalidQuantum     = invalid("quantum must be greater than zero")
	ErrTooManyEvents      = invalid("event class count exceeds maximum")
	ErrNilHandler         = invalid("handler is nil")
	ErrInvalidPriority    = invalid("priority exceeds maximum")
	ErrInvalidEvent       = invalid("event class out of range")
	ErrNoCurrentThread    = errors.New("no logical thread is running")
	ErrShutdown           = errors.New("scheduler is shut down")
)

// argError is an ErrInvalidArgument with a specific message.
type argError struct{ msg string }

func (e *argError) Error() string { return e.msg }

func (e *argError) Unwrap() error { return ErrInvalidArgument }

func invalid(msg string) error { return &argError{msg: msg} }
