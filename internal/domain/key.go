package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// maxIdempotencyKeyLen caps client-supplied idempotency keys. Long enough for
// a UUID or a reasonable client token, short enough to index comfortably.
const maxIdempotencyKeyLen = 50

// keyPattern restricts keys to characters that are safe to store and to echo
// back in headers: alphanumerics plus a small punctuation allowlist.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// ErrInvalidIdempotencyKey is returned by ParseIdempotencyKey for empty,
// oversized, or otherwise malformed input. It is a client error, distinct
// from storage failures.
var ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")

// IdempotencyKey is a validated client-supplied token scoping deduplication
// of a logical command. Immutable once constructed via ParseIdempotencyKey.
type IdempotencyKey struct {
	value string
}

// ParseIdempotencyKey validates and normalizes a raw key. It fails when the
// input is empty or whitespace-only, longer than 50 characters, or contains
// characters outside [A-Za-z0-9._~-]. It has no side effects.
func ParseIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty", ErrInvalidIdempotencyKey)
	}
	if len(trimmed) > maxIdempotencyKeyLen {
		return IdempotencyKey{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidIdempotencyKey, maxIdempotencyKeyLen)
	}
	if !keyPattern.MatchString(trimmed) {
		return IdempotencyKey{}, fmt.Errorf("%w: character outside [A-Za-z0-9._~-]", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key value.
func (k IdempotencyKey) String() string { return k.value }

// IsZero reports whether the key is the uninitialized zero value.
func (k IdempotencyKey) IsZero() bool { return k.value == "" }
