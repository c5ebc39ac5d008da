package session

import "errors"

var (
	// ErrAuthServiceRequired is returned when constructing a manager without
	// an auth service collaborator.
	ErrAuthServiceRequired = errors.New("auth service is required")
	// ErrAuthInFlight is returned when a login or registration is attempted
	// while another one is still in flight.
	ErrAuthInFlight = errors.New("another login or registration is in flight")
	// ErrAlreadyStarted is returned when starting a manager twice.
	ErrAlreadyStarted = errors.New("session manager already started")
)
