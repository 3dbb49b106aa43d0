package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier rejects identifiers that are not canonical UUIDs.
	ErrInvalidIdentifier = errors.New("invalid secret identifier")

	// ErrSessionNotReady means no upstream session is established and the
	// requested secret is not cached.
	ErrSessionNotReady = errors.New("upstream session not ready")

	// ErrBatchEmpty rejects a batch request with no identifiers.
	ErrBatchEmpty = errors.New("no secret identifiers given")
)

// BatchSizeError rejects a batch that exceeds the configured limit.
type BatchSizeError struct {
	Limit int
	Got   int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("batch of %d identifiers exceeds the limit of %d", e.Got, e.Limit)
}

// BatchIdentifierError rejects a batch containing malformed identifiers.
// Malformed lists every offender, in request order, so the caller can fix
// the whole request in one round trip.
type BatchIdentifierError struct {
	Malformed []string
}

func (e *BatchIdentifierError) Error() string {
	return fmt.Sprintf("%d malformed secret identifiers", len(e.Malformed))
}
