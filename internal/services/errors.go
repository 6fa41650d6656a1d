// Package services defines the business logic for publishing newsletter
// issues and managing subscriptions. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers with errors.Is.
//
// The taxonomy deliberately separates three kinds of failure, because callers
// must branch on them to decide retry behavior:
//
//   - validation errors (domain package sentinels plus the ones below) are
//     client mistakes and must never be retried internally;
//   - ErrPublishInProgress is a transient conflict: the identical request
//     should be resubmitted by the client after a short delay;
//   - anything else is a storage failure, wrapped with the step that failed
//     and surfaced as a generic internal error.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrPublishInProgress is returned when another submission holds the
	// processing claim for the same (caller, key) and has not committed a
	// response yet. Retryable by the client with the same idempotency key.
	ErrPublishInProgress = errors.New("publish already in progress")

	// ErrEmptyTitle is returned when a publish command has no title.
	ErrEmptyTitle = errors.New("issue title is empty")

	// ErrEmptyContent is returned when a publish command has neither a text
	// nor an HTML body.
	ErrEmptyContent = errors.New("issue content is empty")

	// ErrUnknownToken is returned when a confirmation token does not resolve
	// to any subscriber.
	ErrUnknownToken = errors.New("unknown subscription token")

	// ErrIssueNotFound indicates that the requested issue does not exist.
	ErrIssueNotFound = errors.New("issue not found")
)

// wrapStep annotates a storage error with the pipeline step that failed, so
// diagnosis does not require leaking store-specific detail to the caller.
func wrapStep(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}
