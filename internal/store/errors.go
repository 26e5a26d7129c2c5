package store

import "errors"

var (
	ErrNotFound = errors.New("store: resource not found")
	// ErrStatusConflict is returned by TransitionJob when the stored status
	// does not match the expected one. Callers never assume a transition
	// succeeded; redelivered executions use this to stand down.
	ErrStatusConflict = errors.New("store: job status conflict")
	// ErrIllegalTransition is returned for from/to pairs outside the
	// transition table, before any statement is issued.
	ErrIllegalTransition = errors.New("store: illegal status transition")
	ErrDuplicate         = errors.New("store: duplicate resource")
)
