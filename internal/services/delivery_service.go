// Package services – DeliveryService
//
// This file implements the worker side of the delivery queue: drain a batch
// of entries, send the referenced issue to each recipient, delete the row on
// success, and bump the attempt counter on failure. Delivery is at-least-once
// by design; the exactly-once guarantee of the system applies to enqueueing,
// not to the final send.
package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/email"
	"github.com/postroom/newsletter-backend/internal/repo"
)

// DeliveryService drains the delivery queue.
type DeliveryService struct {
	DB     *gorm.DB
	Sender email.Sender

	// BatchSize caps entries per drain pass; values <= 0 default to 50.
	BatchSize int
	// MaxAttempts is the per-entry send budget; values <= 0 default to 5.
	MaxAttempts int
}

// DrainOnce processes at most one batch and reports (sent, failed) counts.
// Queue rows whose issue has vanished are acked away rather than retried
// forever; that can only happen if someone deleted an issue out-of-band.
func (s *DeliveryService) DrainOnce(ctx context.Context) (sent, failed int, err error) {
	tr := otel.Tracer("services/DeliveryService")
	ctx, span := tr.Start(ctx, "DrainOnce")
	defer span.End()

	batch := s.BatchSize
	if batch <= 0 {
		batch = 50
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	entries, err := repo.DequeueBatch(ctx, s.DB, batch, maxAttempts)
	if err != nil {
		return 0, 0, wrapStep("dequeue deliveries", err)
	}
	if len(entries) == 0 {
		return 0, 0, nil
	}

	// Entries for the same issue cluster together; cache the issue lookups.
	issues := make(map[string]*domain.NewsletterIssue, 1)
	for _, entry := range entries {
		issue, ok := issues[entry.NewsletterIssueID]
		if !ok {
			issue, err = repo.GetIssue(ctx, s.DB, entry.NewsletterIssueID)
			if err != nil {
				log.Warn().
					Err(err).
					Str("issue_id", entry.NewsletterIssueID).
					Msg("delivery entry references missing issue; dropping")
				_ = repo.AckDelivery(ctx, s.DB, entry.NewsletterIssueID, entry.SubscriberEmail)
				continue
			}
			issues[entry.NewsletterIssueID] = issue
		}

		if sendErr := s.Sender.Send(ctx, entry.SubscriberEmail, issue.Title, issue.HTMLContent, issue.TextContent); sendErr != nil {
			failed++
			deliveriesFailed.Inc()
			log.Warn().
				Err(sendErr).
				Str("issue_id", issue.ID).
				Int("attempts", entry.Attempts+1).
				Msg("newsletter delivery failed")
			if ferr := repo.FailDelivery(ctx, s.DB, entry.NewsletterIssueID, entry.SubscriberEmail); ferr != nil {
				return sent, failed, wrapStep("record delivery failure", ferr)
			}
			continue
		}

		if aerr := repo.AckDelivery(ctx, s.DB, entry.NewsletterIssueID, entry.SubscriberEmail); aerr != nil {
			// The email left but the row stayed: the next pass re-sends.
			// Acceptable under at-least-once delivery.
			return sent, failed, wrapStep("ack delivery", aerr)
		}
		sent++
		deliveriesSent.Inc()
	}

	span.SetAttributes(attribute.Int("deliveries.sent", sent), attribute.Int("deliveries.failed", failed))
	return sent, failed, nil
}
