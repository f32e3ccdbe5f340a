// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers. The HTTP boundary maps
// these onto the fixed wire error-code vocabulary; nothing else leaks.
var (
	// ErrBadRequest indicates a missing or malformed required field.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., public key taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrMalformedKey indicates a submitted public key that does not parse.
	ErrMalformedKey = errors.New("malformed public key")

	// ErrAuthFailed indicates a failed challenge-response verification.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadTimestamp indicates an unparseable or ambiguous device timestamp.
	ErrBadTimestamp = errors.New("bad timestamp")

	// ErrDuplicateTimestamp indicates a (unit, timestamp) pair already stored.
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")

	// ErrNotAnImage indicates an upload whose content is not a recognized image.
	ErrNotAnImage = errors.New("not an image")

	// ErrNoTaskAvailable indicates a poll with no dispatchable task.
	ErrNoTaskAvailable = errors.New("no task available")

	// ErrAckFailed indicates an acknowledgement naming a task that is not
	// dispatched to the calling unit. Deliberately generic.
	ErrAckFailed = errors.New("acknowledgement failed")
)
