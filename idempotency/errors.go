package idempotency

import "errors"

var (
	// ErrInFlight means another execution currently holds the claim for this
	// (user, key) pair and it did not complete within the wait budget. The
	// client may retry after a backoff.
	ErrInFlight = errors.New("a request with this idempotency key is already being processed")

	// ErrMalformedResponse means the effect produced a response that cannot be
	// persisted (status code out of range or an invalid header name). This is
	// a programming error in the caller, caught before any write.
	ErrMalformedResponse = errors.New("malformed response")
)
