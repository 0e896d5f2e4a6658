package updater

import "errors"

var (
	// ErrClientIO is the retryable class of error: dialing or talking to a
	// validator failed transiently (timeout, connection refused). The
	// updater retries these with backoff.
	ErrClientIO = errors.New("updater: validator communication error")
	// ErrFaulty marks an error that must never be retried: the validator
	// signed something inconsistent with the protocol (wrong signature,
	// conflicting commitment). The updater reports these to the
	// communicator instead of retrying.
	ErrFaulty = errors.New("updater: validator reported a protocol fault")
	// ErrMaxRetriesExceeded is returned once the retry budget for a
	// ClientIO-class error is exhausted.
	ErrMaxRetriesExceeded = errors.New("updater: max retries exceeded")
)
