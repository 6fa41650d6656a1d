// Package services – idempotent request coordinator.
//
// This file implements the admission/control mechanism that makes a
// state-changing command exactly-once-effective under at-least-once request
// delivery. The coordinator owns the lifetime of the transaction and,
// transitively, the atomicity of claim row → business writes → delivery
// fan-out → saved response: either all of them commit or none do.
//
// All cross-request coordination is externalized to the relational store's
// transaction and uniqueness guarantees. There is no shared in-process state,
// so correctness holds across multiple service instances behind a load
// balancer.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/repo"
)

// Command is the caller-supplied business logic run under a claimed
// transaction. It performs the durable write(s) implied by the command and
// returns the HTTP-shaped response to be saved and returned to the caller.
// Returning an error rolls the whole transaction back, claim included.
type Command func(tx *gorm.DB) (*domain.StoredResponse, error)

// Outcome is the result of coordinating one command submission.
type Outcome struct {
	Response *domain.StoredResponse
	// Replayed is true when the response was served from storage without
	// re-executing the command.
	Replayed bool
}

// Coordinator turns a (caller, idempotency key, command) triple into
// exactly-once side effects and an always-identical response.
type Coordinator struct {
	DB *gorm.DB
}

// Execute runs the coordinator state machine:
//
//  1. Look up a saved response for (userID, key); if present, replay it
//     verbatim with no side effects. This is the fast path for retries.
//  2. Otherwise open a transaction and try to claim (userID, key). On
//     success, run the command and save its response inside that
//     transaction, then commit.
//  3. If the claim is taken, another submission got there first. Re-run the
//     lookup once: a saved response by now means the other attempt committed
//     and can be replayed; still nothing means it is mid-flight, and the
//     caller gets ErrPublishInProgress to retry with the same key.
//
// The window in step 3 (claim committed by the winner after our lookup but
// its response row not yet visible) is deliberately narrow and surfaced as a
// retryable conflict instead of being closed with blocking reads, which the
// store does not offer. The claim holder's transaction lifetime is bounded by
// the store, not by us, so no polling loop is attempted here either.
//
// Storage errors are wrapped with the step that failed (lookup, begin, claim,
// save response, commit) before they reach the transport layer.
func (c *Coordinator) Execute(ctx context.Context, userID string, key domain.IdempotencyKey, cmd Command) (*Outcome, error) {
	tr := otel.Tracer("services/Coordinator")
	ctx, span := tr.Start(ctx, "Execute",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("idempotency.key", key.String()),
		),
	)
	defer span.End()

	saved, err := repo.GetSavedResponse(ctx, c.DB, userID, key.String())
	if err != nil {
		return nil, fmt.Errorf("lookup saved response: %w", err)
	}
	if saved != nil {
		span.SetAttributes(attribute.Bool("idempotency.replayed", true))
		replaysServed.Inc()
		return &Outcome{Response: saved, Replayed: true}, nil
	}

	tx := c.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := repo.TryClaim(ctx, tx, userID, key.String()); err != nil {
		if errors.Is(err, repo.ErrClaimTaken) {
			tx.Rollback()
			return c.resolveLostRace(ctx, userID, key)
		}
		return nil, fmt.Errorf("acquire processing claim: %w", err)
	}

	resp, err := cmd(tx)
	if err != nil {
		// Business failure: the deferred rollback erases the claim too, so a
		// later retry with the same key is free to claim again.
		return nil, err
	}

	if err := repo.SaveResponse(ctx, tx, userID, key.String(), resp); err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true

	return &Outcome{Response: resp, Replayed: false}, nil
}

// resolveLostRace handles a failed claim: the winner either already committed
// (replay its response) or is still in flight (retryable conflict).
func (c *Coordinator) resolveLostRace(ctx context.Context, userID string, key domain.IdempotencyKey) (*Outcome, error) {
	saved, err := repo.GetSavedResponse(ctx, c.DB, userID, key.String())
	if err != nil {
		return nil, fmt.Errorf("lookup after lost claim race: %w", err)
	}
	if saved != nil {
		replaysServed.Inc()
		return &Outcome{Response: saved, Replayed: true}, nil
	}
	return nil, ErrPublishInProgress
}
