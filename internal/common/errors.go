// Package common defines sentinel errors shared by the client and server
// layers of moodlog. Callers should match them with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Validation errors.
	ErrInvalidEntry    = errors.New("invalid entry")
	ErrInvalidDraft    = errors.New("invalid draft")
	ErrInvalidDocument = errors.New("invalid document")
	ErrStationMismatch = errors.New("station mismatch")

	// Collaborator errors.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrMalformedGeneration   = errors.New("malformed generation response")
	ErrFeedNotConfigured     = errors.New("remote feed not configured")
)

// StationIDMaxLen bounds station identifiers accepted by both sides.
const StationIDMaxLen = 64
