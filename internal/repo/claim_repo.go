// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the processing
// claim that makes command submission exactly-once-effective.
//
// The protocol has three operations:
//
//   - GetSavedResponse: non-blocking read of a fully resolved claim.
//   - TryClaim: INSERT of a placeholder row inside the caller's transaction;
//     the unique index on (user_id, idempotency_key) makes this the mutual
//     exclusion primitive. A uniqueness violation is translated to
//     ErrClaimTaken rather than surfaced as a storage failure.
//   - SaveResponse: UPDATE of the previously claimed row with the final
//     response; last write before the transaction commits.
//
// All writes must happen inside a transaction owned by the coordinator in the
// services layer. Nothing here touches claim rows outside of one.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/postroom/newsletter-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound for convenience across services and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrClaimTaken indicates that a claim row already exists for the given
// (user_id, idempotency_key) pair: another submission of the same command has
// started (and possibly finished) processing.
var ErrClaimTaken = errors.New("processing claim already taken")

// GetSavedResponse returns the stored response for (userID, key), or nil when
// no claim row exists or the claim has not been resolved yet. It never blocks
// on an in-flight claim transaction.
func GetSavedResponse(ctx context.Context, db *gorm.DB, userID, key string) (*domain.StoredResponse, error) {
	var claim domain.ProcessingClaim
	err := db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND response_status IS NOT NULL", userID, key).
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return domain.StoredResponseFromClaim(&claim)
}

// TryClaim inserts a placeholder claim row for (userID, key) inside tx. The
// first caller wins; any concurrent or later attempt gets ErrClaimTaken. The
// row stays invisible to other transactions until tx commits, which is what
// serializes concurrent submissions of the same command.
func TryClaim(ctx context.Context, tx *gorm.DB, userID, key string) error {
	claim := &domain.ProcessingClaim{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(claim).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrClaimTaken
		}
		return err
	}
	return nil
}

// SaveResponse records the final response into the claim row for
// (userID, key) inside tx. It must only be called after a successful TryClaim
// on the same transaction; a missing claim row means the coordinator was
// misused and is reported as ErrNotFound.
func SaveResponse(ctx context.Context, tx *gorm.DB, userID, key string, resp *domain.StoredResponse) error {
	headers, err := resp.MarshalHeaders()
	if err != nil {
		return err
	}
	res := tx.WithContext(ctx).
		Model(&domain.ProcessingClaim{}).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		Updates(map[string]any{
			"response_status":  resp.Status,
			"response_headers": headers,
			"response_body":    resp.Body,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations, so
// the check falls back to substring matching.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
