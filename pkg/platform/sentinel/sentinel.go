package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores (member directory, artifact
// store, audit log, mailbox) return these, optionally wrapped, and services
// translate them into domain errors.
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
