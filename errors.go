package main

import "errors"

var (
	// ErrNotFound is returned when an arena, match or player does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned for lifecycle moves the match does not allow
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict is returned by SessionStore.Save when the stored revision moved
	ErrConflict = errors.New("revision conflict")
	// ErrStore wraps transient storage failures
	ErrStore = errors.New("session store failure")
	// ErrBadAction is returned for malformed inbound actions
	ErrBadAction = errors.New("malformed action")
	// ErrBadRequest is returned for malformed query or body parameters
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthorized is returned when a seat token is missing or does not match
	ErrUnauthorized = errors.New("unauthorized")
)
