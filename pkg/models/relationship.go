package models

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
)

type RelationshipStatus string

const (
	RelationshipStatusActive    RelationshipStatus = "active"
	RelationshipStatusCompleted RelationshipStatus = "completed"
	RelationshipStatusExpired   RelationshipStatus = "expired"
	RelationshipStatusCancelled RelationshipStatus = "cancelled"
)

// PaymentTerms is the snapshot of the accepted deal taken at acceptance
// time. It does not track later edits to the ask.
type PaymentTerms struct {
	CostType CostType `json:"cost_type"`
	Amount   float64  `json:"amount"`
}

// Relationship is the durable record of a successful match between a
// requester and the winning bidder. Created exactly once per accepted bid.
// The message-thread bookkeeping fields are written by the messaging
// subsystem; this service only creates them zeroed.
type Relationship struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`

	RequesterID   string `db:"requester_id" json:"requester_id"`
	RequesterName string `db:"requester_name" json:"requester_name"`
	ProviderID    string `db:"provider_id" json:"provider_id"`
	ProviderName  string `db:"provider_name" json:"provider_name"`

	AskID string `db:"ask_id" json:"ask_id"`
	BidID string `db:"bid_id" json:"bid_id"`

	Status       RelationshipStatus           `db:"status" json:"status"`
	PaymentTerms database.JSONB[PaymentTerms] `db:"payment_terms" json:"payment_terms"`

	// ExpiresAt is derived from the ask's scheduling terms; nil for named
	// terms, which have no calendar bound.
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	LastActivityAt  *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
	RequesterUnread int        `db:"requester_unread" json:"requester_unread"`
	ProviderUnread  int        `db:"provider_unread" json:"provider_unread"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
