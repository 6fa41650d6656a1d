// Package domain defines the core persistence models for the application.
// This file holds the processing-claim row and the stored HTTP response shape
// that together implement exactly-once-effective command submission.
package domain

import (
	"encoding/json"
	"time"
)

// ProcessingClaim is a row keyed by (user_id, idempotency_key). Its bare
// presence means "a processing attempt for this pair has started": the unique
// index makes the first INSERT win and every later one fail, which is the sole
// synchronization mechanism between concurrent submissions. No in-process
// lock is involved, so multiple service instances behind a load balancer
// coordinate correctly through the database alone.
//
// The response columns stay NULL while the claiming transaction is in flight
// and are filled in as the last write before commit, turning the claim into a
// fully resolved record that can be replayed verbatim.
type ProcessingClaim struct {
	ID              string    `gorm:"type:char(36);primaryKey"`
	UserID          string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_claims_user_key,priority:1"`
	IdempotencyKey  string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_claims_user_key,priority:2"`
	ResponseStatus  *int      `gorm:"type:integer"`
	ResponseHeaders []byte    `gorm:"type:blob"` // JSON array of ordered name/value pairs
	ResponseBody    []byte    `gorm:"type:blob"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime"`
}

// TableName implements the GORM tabler interface.
func (ProcessingClaim) TableName() string { return "processing_claims" }

// Resolved reports whether the claim carries a saved response.
func (c *ProcessingClaim) Resolved() bool { return c.ResponseStatus != nil }

// HeaderPair is one recorded response header. Order is preserved, so the
// replayed response is byte-for-byte what the original caller received.
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StoredResponse is the HTTP-shaped outcome of a processed command: status
// code, ordered headers, and raw body bytes. It is written once into the
// claim row and replayed unchanged on every retry of the same command.
type StoredResponse struct {
	Status  int
	Headers []HeaderPair
	Body    []byte
}

// MarshalHeaders encodes the ordered header list for storage.
func (r *StoredResponse) MarshalHeaders() ([]byte, error) {
	if len(r.Headers) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Headers)
}

// StoredResponseFromClaim decodes a resolved claim row back into the response
// it recorded. Calling it on an unresolved claim is a programmer error and
// returns nil.
func StoredResponseFromClaim(c *ProcessingClaim) (*StoredResponse, error) {
	if !c.Resolved() {
		return nil, nil
	}
	resp := &StoredResponse{
		Status: *c.ResponseStatus,
		Body:   c.ResponseBody,
	}
	if len(c.ResponseHeaders) > 0 {
		if err := json.Unmarshal(c.ResponseHeaders, &resp.Headers); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
