package events

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	// Ask lifecycle events
	EventTypeAskCreated  EventType = "ask.created"
	EventTypeAskExtended EventType = "ask.extended"
	EventTypeAskResolved EventType = "ask.resolved"
	EventTypeAskExpired  EventType = "ask.expired"
	EventTypeAskArchived EventType = "ask.archived"

	// Bid events
	EventTypeBidPlaced   EventType = "bid.placed"
	EventTypeBidAccepted EventType = "bid.accepted"
	EventTypeBidRejected EventType = "bid.rejected"

	// Relationship events
	EventTypeRelationshipFormed  EventType = "relationship.formed"
	EventTypeRelationshipExpired EventType = "relationship.expired"

	// Contact events
	EventTypeContactRevealed EventType = "contact.revealed"
)

// AskPayload carries the ask fields watchers need to refresh their view
type AskPayload struct {
	AskID      string           `json:"ask_id"`
	OwnerID    string           `json:"owner_id"`
	CostType   models.CostType  `json:"cost_type"`
	CostAmount float64          `json:"cost_amount"`
	Status     models.AskStatus `json:"status"`
	EndsAt     *time.Time       `json:"ends_at,omitempty"`
}

// BidPayload describes a bid placement or resolution
type BidPayload struct {
	BidID    string           `json:"bid_id"`
	AskID    string           `json:"ask_id"`
	BidderID string           `json:"bidder_id"`
	Amount   float64          `json:"amount"`
	Status   models.BidStatus `json:"status"`
}

// ExtensionPayload describes an anti-snipe extension of the bidding window
type ExtensionPayload struct {
	AskID         string    `json:"ask_id"`
	PreviousEndAt time.Time `json:"previous_end_at"`
	NewEndAt      time.Time `json:"new_end_at"`
	TriggerBidID  string    `json:"trigger_bid_id"`
}

// RelationshipPayload describes a formed or expired relationship
type RelationshipPayload struct {
	RelationshipID string `json:"relationship_id"`
	Code           string `json:"code"`
	AskID          string `json:"ask_id"`
	BidID          string `json:"bid_id,omitempty"`
	RequesterID    string `json:"requester_id"`
	ProviderID     string `json:"provider_id"`
}
