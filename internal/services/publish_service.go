// Package services – PublishService
//
// This file implements PublishService, the application-level component that
// executes the "publish a newsletter issue" command. The service validates
// the payload, then hands the coordinator a command closure that, inside the
// claimed transaction, records the issue and fans it out into the delivery
// queue (one row per currently-confirmed subscriber). The response saved with
// the claim is a 303 redirect to the newsletter admin page, mirroring what
// the browser-facing flow expects.
//
// Observability: public methods are OpenTelemetry-instrumented; the publish
// path increments the issue/delivery counters only after the transaction is
// known to have committed.
package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/repo"
)

// issuesLocation is where a successful publish redirects the caller.
const issuesLocation = "/admin/newsletters"

// NewIssue is the business payload of a publish command.
type NewIssue struct {
	Title       string
	TextContent string
	HTMLContent string
}

// PublishService coordinates idempotent issue publishing.
type PublishService struct {
	DB *gorm.DB

	// Coordinator defaults to one over DB when nil.
	Coordinator *Coordinator
}

// Publish validates the payload and runs the publish command through the
// idempotent request coordinator. Submitting the same (userID, key) twice
// yields two identical responses backed by exactly one issue and one set of
// delivery rows; a concurrent duplicate either replays or gets
// ErrPublishInProgress.
func (s *PublishService) Publish(ctx context.Context, userID string, key domain.IdempotencyKey, issue NewIssue) (*Outcome, error) {
	tr := otel.Tracer("services/PublishService")
	ctx, span := tr.Start(ctx, "Publish",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	issue.Title = strings.TrimSpace(issue.Title)
	if issue.Title == "" {
		return nil, ErrEmptyTitle
	}
	if strings.TrimSpace(issue.TextContent) == "" && strings.TrimSpace(issue.HTMLContent) == "" {
		return nil, ErrEmptyContent
	}

	var recipients int64
	outcome, err := s.coordinator().Execute(ctx, userID, key, func(tx *gorm.DB) (*domain.StoredResponse, error) {
		created, err := repo.CreateIssue(ctx, tx, issue.Title, issue.TextContent, issue.HTMLContent, time.Now().UTC())
		if err != nil {
			return nil, wrapStep("record newsletter issue", err)
		}
		recipients, err = repo.EnqueueDeliveries(ctx, tx, created.ID)
		if err != nil {
			return nil, wrapStep("enqueue deliveries", err)
		}
		return &domain.StoredResponse{
			Status: http.StatusSeeOther,
			Headers: []domain.HeaderPair{
				{Name: "Location", Value: issuesLocation},
			},
			Body: nil,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if !outcome.Replayed {
		issuesPublished.Inc()
		deliveriesEnqueued.Add(float64(recipients))
		log.Info().
			Str("user_id", userID).
			Str("idempotency_key", key.String()).
			Int64("recipients", recipients).
			Msg("newsletter issue published")
	}
	return outcome, nil
}

// ListIssuesPage returns paginated issues together with the total count.
func (s *PublishService) ListIssuesPage(ctx context.Context, page, pageSize int) ([]domain.NewsletterIssue, int64, error) {
	tr := otel.Tracer("services/PublishService")
	ctx, span := tr.Start(ctx, "ListIssuesPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountIssues(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.NewsletterIssue{}, 0, nil
	}
	items, err := repo.ListIssuesPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

func (s *PublishService) coordinator() *Coordinator {
	if s.Coordinator != nil {
		return s.Coordinator
	}
	return &Coordinator{DB: s.DB}
}
