package ingest

import "errors"

var (
	// ErrFeedUnavailable wraps any fetch or parse failure. The parser's own
	// error stays in the chain.
	ErrFeedUnavailable = errors.New("feed unavailable")
	// ErrIntegrityViolation means fan-out saw an entry of another feed.
	ErrIntegrityViolation = errors.New("entry does not belong to subscription feed")
	ErrInvalidEntry       = errors.New("invalid entry")
)
