package models

import "time"

type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

// Bid is an offer against an ask. Bids are append-only: a bidder who changes
// their price submits a new bid, and the older one is superseded for display
// without changing its stored status.
type Bid struct {
	ID         string    `db:"id" json:"id"`
	AskID      string    `db:"ask_id" json:"ask_id"`
	BidderID   string    `db:"bidder_id" json:"bidder_id"`
	BidderName string    `db:"bidder_name" json:"bidder_name"`
	Amount     float64   `db:"amount" json:"amount"`
	Pitch      string    `db:"pitch" json:"pitch"`
	Status     BidStatus `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BidView is a bid decorated with the display-only supersession flag: true
// when the same bidder has a more recent bid on the ask.
type BidView struct {
	Bid
	Superseded bool `json:"superseded"`
}

// BidStatistics summarizes the pending bids on an ask.
type BidStatistics struct {
	AskID   string  `json:"ask_id"`
	Count   int     `json:"count"`
	Lowest  float64 `json:"lowest"`
	Average float64 `json:"average"`
}

// PlaceBidRequest is the inbound payload for submitting a bid.
type PlaceBidRequest struct {
	BidderName string  `json:"bidder_name" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Pitch      string  `json:"pitch"`
}
