// Package services – SubscriptionService
//
// This file implements the signup flow: validate and normalize the email and
// name, insert the subscriber as pending_confirmation together with a fresh
// confirmation token in one transaction, then send the confirmation email
// carrying the token link. Confirmation resolves the token and flips the
// subscriber to confirmed, which is what the publish fan-out selects on.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/email"
	"github.com/postroom/newsletter-backend/internal/repo"
)

// tokenLen is the length of a confirmation token: 25 case-sensitive
// alphanumerics, ~148 bits of entropy.
const tokenLen = 25

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SubscriptionService owns subscriber signup and confirmation.
type SubscriptionService struct {
	DB      *gorm.DB
	Sender  email.Sender
	BaseURL string // public base URL used in confirmation links
}

// Subscribe validates the input, stores the pending subscriber plus its
// confirmation token atomically, and sends the confirmation email. A failure
// to send is returned after the subscriber is durably stored: the client can
// resubmit and support can re-trigger the email; the signup itself is not
// rolled back for a transport hiccup.
func (s *SubscriptionService) Subscribe(ctx context.Context, rawEmail, rawName string) (*domain.Subscriber, error) {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "Subscribe")
	defer span.End()

	addr, err := domain.ParseSubscriberEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	name, err := domain.ParseSubscriberName(rawName)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("subscriber.email", addr))

	token, err := generateSubscriptionToken()
	if err != nil {
		return nil, wrapStep("generate subscription token", err)
	}

	var sub *domain.Subscriber
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateSubscriber(ctx, tx, addr, name)
		if err != nil {
			return wrapStep("insert subscriber", err)
		}
		if err := repo.StoreSubscriptionToken(ctx, tx, created.ID, token); err != nil {
			return wrapStep("store subscription token", err)
		}
		sub = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sendConfirmationEmail(ctx, addr, token); err != nil {
		return sub, wrapStep("send confirmation email", err)
	}
	return sub, nil
}

// Confirm resolves a token and marks its subscriber confirmed. An unknown
// token maps to ErrUnknownToken; a re-used token for an already-confirmed
// subscriber succeeds quietly.
func (s *SubscriptionService) Confirm(ctx context.Context, token string) error {
	tr := otel.Tracer("services/SubscriptionService")
	ctx, span := tr.Start(ctx, "Confirm")
	defer span.End()

	subscriberID, err := repo.SubscriberIDFromToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUnknownToken
		}
		return wrapStep("resolve subscription token", err)
	}
	if err := repo.ConfirmSubscriber(ctx, s.DB, subscriberID); err != nil {
		return wrapStep("confirm subscriber", err)
	}
	return nil
}

func (s *SubscriptionService) sendConfirmationEmail(ctx context.Context, to, token string) error {
	if s.Sender == nil {
		return nil
	}
	link := fmt.Sprintf("%s/subscriptions/confirm?token=%s", s.BaseURL, token)
	text := fmt.Sprintf("Welcome to our newsletter!\nVisit %s to confirm your subscription.", link)
	html := fmt.Sprintf(`Welcome to our newsletter!<br />Click <a href=%q>here</a> to confirm your subscription.`, link)
	return s.Sender.Send(ctx, to, "Confirm your subscription", html, text)
}

// generateSubscriptionToken draws a 25-character alphanumeric token from
// crypto/rand.
func generateSubscriptionToken() (string, error) {
	buf := make([]byte, tokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf), nil
}
