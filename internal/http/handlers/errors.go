// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The symbolic constants here are mapped to HTTP responses via the
// fail() helper and give clients a stable, machine-readable taxonomy to
// branch on. In particular, publish_in_progress is the signal to resubmit
// the identical request (same Idempotency-Key) after a short delay.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeBadIdempotencyKey = "bad_idempotency_key"
	ErrCodePublishInProgress = "publish_in_progress"
	ErrCodePublishFailed     = "publish_failed"
	ErrCodeSubscribeFailed   = "subscribe_failed"
	ErrCodeListFailed        = "list_failed"
)
