package models

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
)

// ContactSnapshot is the winning bidder's contact data frozen at acceptance
// time. A later profile edit must not alter the historical reveal, so the
// values are copied, never joined live.
type ContactSnapshot struct {
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Phone string `db:"phone" json:"phone"`
}

// ContactReveal is the one-time disclosure of the winning bidder's private
// contact details to the requester. Created at most once per (ask, bid) pair
// and only visible to the ask's owner.
type ContactReveal struct {
	ID          string                          `db:"id" json:"id"`
	AskID       string                          `db:"ask_id" json:"ask_id"`
	BidID       string                          `db:"bid_id" json:"bid_id"`
	RequesterID string                          `db:"requester_id" json:"requester_id"`
	ProviderID  string                          `db:"provider_id" json:"provider_id"`
	Contact     database.JSONB[ContactSnapshot] `db:"contact" json:"contact"`
	RevealedAt  time.Time                       `db:"revealed_at" json:"revealed_at"`
}
