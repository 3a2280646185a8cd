package domain

import (
	"github.com/allisson/leasemq/internal/errors"
)

// Message queue errors.
var (
	// ErrMessageNotFound indicates the message is not in the message store.
	ErrMessageNotFound = errors.Wrap(errors.ErrNotFound, "message not found")

	// ErrArchiveRecordNotFound indicates the archive record does not exist.
	ErrArchiveRecordNotFound = errors.Wrap(errors.ErrNotFound, "archive record not found")

	// ErrNotAvailable indicates another actor owns the lease or the message is gone.
	ErrNotAvailable = errors.Wrap(errors.ErrConflict, "message not available")

	// ErrLeaseConflict indicates the caller's lease is no longer held; the result must be discarded.
	ErrLeaseConflict = errors.Wrap(errors.ErrConflict, "lease no longer held")

	// ErrInvalidOutcome indicates an outcome outside the closed set.
	ErrInvalidOutcome = errors.Wrap(errors.ErrInvalidInput, "invalid outcome")

	// ErrReservedOutcome indicates a worker tried to settle with an outcome reserved for the reclaimer.
	ErrReservedOutcome = errors.Wrap(errors.ErrInvalidInput, "outcome reserved for the reclaimer")

	// ErrInvalidLeaseDuration indicates a non-positive lease duration.
	ErrInvalidLeaseDuration = errors.Wrap(errors.ErrInvalidInput, "lease duration must be positive")

	// ErrInvalidPayload indicates the payload is not valid JSON.
	ErrInvalidPayload = errors.Wrap(errors.ErrInvalidInput, "payload must be valid JSON")

	// ErrInvalidHandledBy indicates an empty or oversized handled_by identity.
	ErrInvalidHandledBy = errors.Wrap(errors.ErrInvalidInput, "handled_by must be 1 to 50 characters")
)
