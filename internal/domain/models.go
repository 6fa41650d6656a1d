// Package domain defines the persistence models for newsletter issues,
// subscribers, confirmation tokens, and the delivery queue. These types are
// mapped with GORM and form the core data layer of the newsletter backend.
package domain

import "time"

// Subscriber status values. A subscriber starts as pending_confirmation and
// becomes confirmed only after following the emailed confirmation link.
// Only confirmed subscribers receive newsletter issues.
const (
	SubscriberStatusPending   = "pending_confirmation"
	SubscriberStatusConfirmed = "confirmed"
)

// NewsletterIssue is a published edition of the newsletter. Issues are created
// exactly once per successfully executed publish command and are never mutated
// or deleted by this service.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Title: the issue/email subject line.
//   - TextContent / HTMLContent: the two bodies sent to subscribers.
//   - PublishedAt: UTC timestamp of the publish command.
type NewsletterIssue struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Title       string    `json:"title"        gorm:"type:varchar(255);not null"`
	TextContent string    `json:"text_content" gorm:"type:text;not null"`
	HTMLContent string    `json:"html_content" gorm:"type:text;not null"`
	PublishedAt time.Time `json:"published_at" gorm:"not null;index"`
}

// TableName returns the database table name for NewsletterIssue.
func (NewsletterIssue) TableName() string { return "newsletter_issues" }

// Subscriber is a (potential) recipient of newsletter issues.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Email: unique delivery address.
//   - Name: display name, NFC-normalized at the boundary.
//   - Status: pending_confirmation or confirmed (enforced by DB constraint).
//   - SubscribedAt: UTC timestamp of the original signup.
type Subscriber struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email"         gorm:"type:varchar(320);not null;uniqueIndex:ux_subscribers_email"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	Status       string    `json:"status"        gorm:"type:varchar(32);not null;index;check:status IN ('pending_confirmation','confirmed')"`
	SubscribedAt time.Time `json:"subscribed_at" gorm:"not null"`
}

// TableName returns the database table name for Subscriber.
func (Subscriber) TableName() string { return "subscribers" }

// SubscriptionToken links an emailed confirmation token to a subscriber.
// Tokens are single-purpose: resolving one flips the subscriber to confirmed.
type SubscriptionToken struct {
	Token        string `gorm:"type:varchar(64);primaryKey"`
	SubscriberID string `gorm:"type:char(36);not null;index"`

	// Subscriber is the owning subscriber; tokens are cascade-deleted with it.
	Subscriber Subscriber `gorm:"foreignKey:SubscriberID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SubscriptionToken.
func (SubscriptionToken) TableName() string { return "subscription_tokens" }

// DeliveryQueueEntry schedules one issue delivery to one subscriber email.
// Entries are inserted in the same transaction as the issue itself, so an
// issue and its recipient set commit or roll back together. The composite
// uniqueness on (issue, email) rules out duplicate deliveries structurally.
//
// The worker deletes an entry once the send succeeds, or bumps Attempts on
// failure; entries that exhaust the configured attempt budget are left in
// place for inspection.
type DeliveryQueueEntry struct {
	NewsletterIssueID string    `json:"newsletter_issue_id" gorm:"type:char(36);not null;primaryKey;uniqueIndex:ux_delivery_issue_email,priority:1"`
	SubscriberEmail   string    `json:"subscriber_email"    gorm:"type:varchar(320);not null;primaryKey;uniqueIndex:ux_delivery_issue_email,priority:2"`
	Attempts          int       `json:"attempts"            gorm:"not null;default:0"`
	CreatedAt         time.Time `json:"created_at"          gorm:"not null;index"`
}

// TableName returns the database table name for DeliveryQueueEntry.
func (DeliveryQueueEntry) TableName() string { return "delivery_queue" }
