package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/postroom/newsletter-backend/internal/repo"
	"gorm.io/gorm"
)

func confirmSubscribers(t *testing.T, db *gorm.DB, emails ...string) {
	t.Helper()
	ctx := context.Background()
	for _, addr := range emails {
		sub, err := repo.CreateSubscriber(ctx, db, addr, "Reader")
		if err != nil {
			t.Fatalf("CreateSubscriber(%s): %v", addr, err)
		}
		if err := repo.ConfirmSubscriber(ctx, db, sub.ID); err != nil {
			t.Fatalf("ConfirmSubscriber(%s): %v", addr, err)
		}
	}
}

func TestPublish_CreatesIssueAndFansOut(t *testing.T) {
	db := newServiceDB(t)
	svc := &PublishService{DB: db}
	ctx := context.Background()

	confirmSubscribers(t, db, "a@example.com", "b@example.com")
	if _, err := repo.CreateSubscriber(ctx, db, "pending@example.com", "P"); err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	outcome, err := svc.Publish(ctx, "editor", mustKey(t, "pub-1"), NewIssue{
		Title:       "Issue #1",
		TextContent: "hello",
		HTMLContent: "<p>hello</p>",
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if outcome.Replayed {
		t.Fatalf("first publish marked replayed")
	}
	if outcome.Response.Status != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", outcome.Response.Status)
	}
	if len(outcome.Response.Headers) != 1 ||
		outcome.Response.Headers[0].Name != "Location" ||
		outcome.Response.Headers[0].Value != "/admin/newsletters" {
		t.Fatalf("headers = %+v", outcome.Response.Headers)
	}

	total, err := repo.CountIssues(ctx, db)
	if err != nil || total != 1 {
		t.Fatalf("issues = %d err=%v, want 1", total, err)
	}

	issues, err := repo.ListIssuesPage(ctx, db, 0, 10)
	if err != nil || len(issues) != 1 {
		t.Fatalf("list issues: len=%d err=%v", len(issues), err)
	}
	queued, err := repo.CountQueuedDeliveries(ctx, db, issues[0].ID)
	if err != nil || queued != 2 {
		t.Fatalf("queued = %d err=%v, want 2 (pending excluded)", queued, err)
	}
}

func TestPublish_DoubleSubmitIsIdempotent(t *testing.T) {
	db := newServiceDB(t)
	svc := &PublishService{DB: db}
	ctx := context.Background()

	confirmSubscribers(t, db, "a@example.com")
	key := mustKey(t, "pub-1")
	issue := NewIssue{Title: "Issue #1", TextContent: "hello"}

	first, err := svc.Publish(ctx, "editor", key, issue)
	if err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	second, err := svc.Publish(ctx, "editor", key, issue)
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}

	if !second.Replayed {
		t.Fatalf("second publish not replayed")
	}
	if second.Response.Status != first.Response.Status {
		t.Fatalf("statuses differ: %d vs %d", first.Response.Status, second.Response.Status)
	}
	if len(second.Response.Headers) != len(first.Response.Headers) ||
		second.Response.Headers[0] != first.Response.Headers[0] {
		t.Fatalf("headers differ: %+v vs %+v", first.Response.Headers, second.Response.Headers)
	}

	total, err := repo.CountIssues(ctx, db)
	if err != nil || total != 1 {
		t.Fatalf("issues = %d err=%v, want exactly 1", total, err)
	}
	issues, _ := repo.ListIssuesPage(ctx, db, 0, 10)
	queued, err := repo.CountQueuedDeliveries(ctx, db, issues[0].ID)
	if err != nil || queued != 1 {
		t.Fatalf("queued = %d err=%v, want exactly 1", queued, err)
	}
}

func TestPublish_DistinctKeysPublishTwice(t *testing.T) {
	db := newServiceDB(t)
	svc := &PublishService{DB: db}
	ctx := context.Background()

	issue := NewIssue{Title: "Issue", TextContent: "body"}
	if _, err := svc.Publish(ctx, "editor", mustKey(t, "pub-1"), issue); err != nil {
		t.Fatalf("Publish pub-1: %v", err)
	}
	if _, err := svc.Publish(ctx, "editor", mustKey(t, "pub-2"), issue); err != nil {
		t.Fatalf("Publish pub-2: %v", err)
	}
	total, err := repo.CountIssues(ctx, db)
	if err != nil || total != 2 {
		t.Fatalf("issues = %d err=%v, want 2", total, err)
	}
}

func TestPublish_ValidatesPayload(t *testing.T) {
	db := newServiceDB(t)
	svc := &PublishService{DB: db}
	ctx := context.Background()

	_, err := svc.Publish(ctx, "editor", mustKey(t, "k1"), NewIssue{Title: "  ", TextContent: "x"})
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("err = %v, want ErrEmptyTitle", err)
	}

	_, err = svc.Publish(ctx, "editor", mustKey(t, "k2"), NewIssue{Title: "t"})
	if !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}

	// Validation failures must not consume the key.
	if _, err := svc.Publish(ctx, "editor", mustKey(t, "k1"), NewIssue{Title: "t", TextContent: "x"}); err != nil {
		t.Fatalf("publish after validation failure: %v", err)
	}

	total, _ := repo.CountIssues(ctx, db)
	if total != 1 {
		t.Fatalf("issues = %d, want 1", total)
	}
}

func TestPublish_HTMLOnlyContentAccepted(t *testing.T) {
	db := newServiceDB(t)
	svc := &PublishService{DB: db}

	if _, err := svc.Publish(context.Background(), "editor", mustKey(t, "k1"),
		NewIssue{Title: "t", HTMLContent: "<p>x</p>"}); err != nil {
		t.Fatalf("Publish with html only: %v", err)
	}
}

func TestListIssuesPage_EmptyAndPaged(t *testing.T) {
	db := newServiceDB(t)
	svc := &PublishService{DB: db}
	ctx := context.Background()

	items, total, err := svc.ListIssuesPage(ctx, 1, 20)
	if err != nil {
		t.Fatalf("ListIssuesPage: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("empty store: total=%d len=%d", total, len(items))
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Publish(ctx, "editor", mustKey(t, fmt.Sprintf("pub-%d", i)), NewIssue{Title: "t", TextContent: "x"}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	items, total, err = svc.ListIssuesPage(ctx, 1, 2)
	if err != nil {
		t.Fatalf("ListIssuesPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("page 1: total=%d len=%d, want 3/2", total, len(items))
	}
	items, _, err = svc.ListIssuesPage(ctx, 2, 2)
	if err != nil || len(items) != 1 {
		t.Fatalf("page 2: len=%d err=%v, want 1", len(items), err)
	}

	// Out-of-range inputs are clamped, not rejected.
	if _, _, err := svc.ListIssuesPage(ctx, 0, -1); err != nil {
		t.Fatalf("clamped ListIssuesPage: %v", err)
	}
}
