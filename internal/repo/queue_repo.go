// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the delivery queue: the transactional
// fan-out written at publish time and the dequeue/ack/fail operations the
// background worker drains it with.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/postroom/newsletter-backend/internal/domain"
)

// EnqueueDeliveries inserts one delivery_queue row per currently-confirmed
// subscriber for the given issue, as a single set-based statement. It must run
// inside the same transaction that created the issue: the recipient set is
// whatever is confirmed at enqueue time, and it commits or rolls back together
// with the issue. Returns the number of rows written.
//
// One statement instead of a row-per-recipient loop keeps the round-trip count
// independent of list size.
func EnqueueDeliveries(ctx context.Context, tx *gorm.DB, issueID string) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO delivery_queue (newsletter_issue_id, subscriber_email, attempts, created_at)
		 SELECT ?, email, 0, ? FROM subscribers WHERE status = ?`,
		issueID, time.Now().UTC(), domain.SubscriberStatusConfirmed,
	)
	return res.RowsAffected, res.Error
}

// DequeueBatch returns up to limit entries that still have attempt budget,
// oldest first. Entries are not locked: the single worker process is the only
// consumer, and a crash between dequeue and ack just means the entry is
// picked up again (at-least-once delivery, tolerated downstream).
func DequeueBatch(ctx context.Context, db *gorm.DB, limit, maxAttempts int) ([]domain.DeliveryQueueEntry, error) {
	var out []domain.DeliveryQueueEntry
	err := db.WithContext(ctx).
		Where("attempts < ?", maxAttempts).
		Order("created_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AckDelivery deletes a queue entry after a successful send.
func AckDelivery(ctx context.Context, db *gorm.DB, issueID, email string) error {
	return db.WithContext(ctx).
		Where("newsletter_issue_id = ? AND subscriber_email = ?", issueID, email).
		Delete(&domain.DeliveryQueueEntry{}).Error
}

// FailDelivery bumps the attempt counter after a failed send. Entries that
// reach the worker's attempt budget stop being dequeued but stay in the table
// for inspection.
func FailDelivery(ctx context.Context, db *gorm.DB, issueID, email string) error {
	return db.WithContext(ctx).
		Model(&domain.DeliveryQueueEntry{}).
		Where("newsletter_issue_id = ? AND subscriber_email = ?", issueID, email).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

// CountQueuedDeliveries returns the number of queue rows for one issue.
func CountQueuedDeliveries(ctx context.Context, db *gorm.DB, issueID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.DeliveryQueueEntry{}).
		Where("newsletter_issue_id = ?", issueID).
		Count(&total).Error
	return total, err
}
