// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for subscribers
// and their confirmation tokens.
//
// Error semantics:
//   - ErrNotFound when a subscriber or token does not exist.
//   - ErrDuplicateEmail when an email address is already subscribed.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/postroom/newsletter-backend/internal/domain"
)

// ErrDuplicateEmail indicates that a subscriber row already exists for the
// given email address.
var ErrDuplicateEmail = errors.New("email already subscribed")

// CreateSubscriber inserts a new subscriber in pending_confirmation status.
// A unique violation on the email column is translated to ErrDuplicateEmail.
func CreateSubscriber(ctx context.Context, db *gorm.DB, email, name string) (*domain.Subscriber, error) {
	sub := &domain.Subscriber{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Status:       domain.SubscriberStatusPending,
		SubscribedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(sub).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return sub, nil
}

// StoreSubscriptionToken records the confirmation token for a subscriber.
// Expected to run in the same transaction as CreateSubscriber.
func StoreSubscriptionToken(ctx context.Context, db *gorm.DB, subscriberID, token string) error {
	rec := &domain.SubscriptionToken{
		Token:        token,
		SubscriberID: subscriberID,
	}
	return db.WithContext(ctx).Create(rec).Error
}

// SubscriberIDFromToken resolves a confirmation token to its subscriber ID,
// or ErrNotFound for an unknown token.
func SubscriberIDFromToken(ctx context.Context, db *gorm.DB, token string) (string, error) {
	var rec domain.SubscriptionToken
	if err := db.WithContext(ctx).Where("token = ?", token).First(&rec).Error; err != nil {
		return "", err
	}
	return rec.SubscriberID, nil
}

// ConfirmSubscriber flips a subscriber to confirmed status. Confirming an
// already-confirmed subscriber is a no-op that still reports success, so a
// re-clicked confirmation link stays harmless.
func ConfirmSubscriber(ctx context.Context, db *gorm.DB, subscriberID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("id = ?", subscriberID).
		Update("status", domain.SubscriberStatusConfirmed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSubscriberByEmail fetches a subscriber by address, or ErrNotFound.
func GetSubscriberByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	if err := db.WithContext(ctx).Where("email = ?", email).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// CountConfirmedSubscribers returns the number of currently confirmed
// recipients, i.e. the fan-out width of the next published issue.
func CountConfirmedSubscribers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Subscriber{}).
		Where("status = ?", domain.SubscriberStatusConfirmed).
		Count(&total).Error
	return total, err
}
