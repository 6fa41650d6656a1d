package handlers

import (
	"context"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/services"
)

// PublishService is the slice of services.PublishService the newsletter
// handlers need. Narrow interfaces keep handlers testable with fakes.
type PublishService interface {
	Publish(ctx context.Context, userID string, key domain.IdempotencyKey, issue services.NewIssue) (*services.Outcome, error)
	ListIssuesPage(ctx context.Context, page, pageSize int) ([]domain.NewsletterIssue, int64, error)
}

// SubscriptionService is the slice of services.SubscriptionService the
// subscription handlers need.
type SubscriptionService interface {
	Subscribe(ctx context.Context, email, name string) (*domain.Subscriber, error)
	Confirm(ctx context.Context, token string) error
}

// Handlers bundles the HTTP handlers with their injected services.
type Handlers struct {
	pubSvc PublishService
	subSvc SubscriptionService
}

// New constructs the handler set.
func New(pubSvc PublishService, subSvc SubscriptionService) *Handlers {
	return &Handlers{pubSvc: pubSvc, subSvc: subSvc}
}
