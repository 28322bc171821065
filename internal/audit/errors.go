package audit

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors for the audit package.
var (
	// ErrStoreUnavailable wraps transport-level failures reaching the
	// transactional store. Callers decide whether to degrade or abort.
	ErrStoreUnavailable = errors.New("audit: store unavailable")

	// ErrLockedEntry is returned on any mutation attempt against a locked
	// entry. Never retried.
	ErrLockedEntry = errors.New("audit: entry is locked")

	// ErrInvalidEvent is returned for malformed event fields, before any
	// store interaction.
	ErrInvalidEvent = errors.New("audit: invalid event")
)

// ChainBrokenError reports detected tampering in a resource chain. It must
// never be swallowed; the verification endpoint raises an operational alert.
type ChainBrokenError struct {
	ResourceType string
	ResourceID   uuid.UUID
	At           uuid.UUID
	Reason       VerificationReason
}

func (e *ChainBrokenError) Error() string {
	return fmt.Sprintf("audit: chain broken for %s:%s at entry %s (%s)",
		e.ResourceType, e.ResourceID, e.At, e.Reason)
}
