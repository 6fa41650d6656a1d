package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/postroom/newsletter-backend/internal/domain"
	"github.com/postroom/newsletter-backend/internal/repo"
)

// captureSender records sends and can be told to fail.
type captureSender struct {
	to      []string
	subject string
	html    string
	text    string
	fail    error
}

func (s *captureSender) Send(_ context.Context, to, subject, htmlBody, textBody string) error {
	if s.fail != nil {
		return s.fail
	}
	s.to = append(s.to, to)
	s.subject = subject
	s.html = htmlBody
	s.text = textBody
	return nil
}

func TestSubscribe_StoresPendingAndEmailsToken(t *testing.T) {
	db := newServiceDB(t)
	sender := &captureSender{}
	svc := &SubscriptionService{DB: db, Sender: sender, BaseURL: "https://news.example.com"}
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "ursula@example.com", "Ursula Le Guin")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if sub.Status != domain.SubscriberStatusPending {
		t.Fatalf("status = %q, want pending_confirmation", sub.Status)
	}

	if len(sender.to) != 1 || sender.to[0] != "ursula@example.com" {
		t.Fatalf("confirmation email went to %v", sender.to)
	}
	const prefix = "https://news.example.com/subscriptions/confirm?token="
	idx := strings.Index(sender.text, prefix)
	if idx < 0 {
		t.Fatalf("confirmation link missing from text body: %q", sender.text)
	}
	token := strings.Fields(sender.text[idx+len(prefix):])[0]
	if len(token) != 25 {
		t.Fatalf("token length = %d, want 25", len(token))
	}
	if !strings.Contains(sender.html, prefix+token) {
		t.Fatalf("html body missing the same link")
	}

	// The emailed token resolves back to this subscriber.
	id, err := repo.SubscriberIDFromToken(ctx, db, token)
	if err != nil || id != sub.ID {
		t.Fatalf("token resolve: id=%q err=%v, want %q", id, err, sub.ID)
	}
}

func TestSubscribe_ValidatesInput(t *testing.T) {
	db := newServiceDB(t)
	svc := &SubscriptionService{DB: db, Sender: &captureSender{}, BaseURL: "http://x"}
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "not-an-email", "Name"); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("err = %v, want ErrInvalidEmail", err)
	}
	if _, err := svc.Subscribe(ctx, "a@example.com", "<script>"); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestSubscribe_DuplicateEmail(t *testing.T) {
	db := newServiceDB(t)
	svc := &SubscriptionService{DB: db, Sender: &captureSender{}, BaseURL: "http://x"}
	ctx := context.Background()

	if _, err := svc.Subscribe(ctx, "a@example.com", "Ada"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}
	_, err := svc.Subscribe(ctx, "a@example.com", "Ada Again")
	if !errors.Is(err, repo.ErrDuplicateEmail) {
		t.Fatalf("err = %v, want ErrDuplicateEmail", err)
	}
}

func TestSubscribe_EmailFailureKeepsSignup(t *testing.T) {
	db := newServiceDB(t)
	sender := &captureSender{fail: errors.New("smtp down")}
	svc := &SubscriptionService{DB: db, Sender: sender, BaseURL: "http://x"}
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "a@example.com", "Ada")
	if err == nil {
		t.Fatalf("expected send error")
	}
	if sub == nil {
		t.Fatalf("subscriber not returned despite durable store")
	}

	stored, gerr := repo.GetSubscriberByEmail(ctx, db, "a@example.com")
	if gerr != nil {
		t.Fatalf("subscriber not stored: %v", gerr)
	}
	if stored.Status != domain.SubscriberStatusPending {
		t.Fatalf("status = %q", stored.Status)
	}
}

func TestConfirm_FlipsToConfirmed(t *testing.T) {
	db := newServiceDB(t)
	sender := &captureSender{}
	svc := &SubscriptionService{DB: db, Sender: sender, BaseURL: "http://x"}
	ctx := context.Background()

	sub, err := svc.Subscribe(ctx, "a@example.com", "Ada")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	const prefix = "http://x/subscriptions/confirm?token="
	idx := strings.Index(sender.text, prefix)
	if idx < 0 {
		t.Fatalf("link missing: %q", sender.text)
	}
	token := strings.Fields(sender.text[idx+len(prefix):])[0]

	if err := svc.Confirm(ctx, token); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	stored, err := repo.GetSubscriberByEmail(ctx, db, "a@example.com")
	if err != nil || stored.Status != domain.SubscriberStatusConfirmed {
		t.Fatalf("status = %q err=%v, want confirmed", stored.Status, err)
	}
	if stored.ID != sub.ID {
		t.Fatalf("confirmed a different subscriber")
	}

	// Re-clicking the link stays a success.
	if err := svc.Confirm(ctx, token); err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
}

func TestConfirm_UnknownToken(t *testing.T) {
	db := newServiceDB(t)
	svc := &SubscriptionService{DB: db}
	if err := svc.Confirm(context.Background(), "bogus"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}
}

func TestGenerateSubscriptionToken_AlphabetAndLength(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := generateSubscriptionToken()
		if err != nil {
			t.Fatalf("generateSubscriptionToken: %v", err)
		}
		if len(tok) != tokenLen {
			t.Fatalf("len = %d, want %d", len(tok), tokenLen)
		}
		for _, r := range tok {
			if !strings.ContainsRune(tokenAlphabet, r) {
				t.Fatalf("token %q contains %q outside the alphabet", tok, r)
			}
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = true
	}
}
