package models

import (
	"time"
)

type (
	AskStatus string
	CostType  string
)

const (
	AskStatusActive    AskStatus = "active"
	AskStatusCompleted AskStatus = "completed"
	AskStatusExpired   AskStatus = "expired"

	CostTypeHourly  CostType = "hourly"
	CostTypePerUnit CostType = "per_unit"
	CostTypeFlat    CostType = "flat"
)

// Ask is a posted reverse-auction lot: a requester describes the work, names
// a starting price, and bidders under-cut each other until the window closes
// or the requester accepts an offer.
type Ask struct {
	ID         string   `db:"id" json:"id"`
	OwnerID    string   `db:"owner_id" json:"owner_id"`
	OwnerName  string   `db:"owner_name" json:"owner_name"`
	CostType   CostType `db:"cost_type" json:"cost_type"`
	CostAmount float64  `db:"cost_amount" json:"cost_amount"`

	// Exactly one of the three scheduling shapes is populated.
	SingleDate     *time.Time `db:"single_date" json:"single_date,omitempty"`
	DateRangeStart *time.Time `db:"date_range_start" json:"date_range_start,omitempty"`
	DateRangeEnd   *time.Time `db:"date_range_end" json:"date_range_end,omitempty"`
	NamedTerm      *string    `db:"named_term" json:"named_term,omitempty"`

	Details string `db:"details" json:"details"`

	// EndsAt is the auction window. An ask with no window never expires and
	// is never subject to anti-snipe extension.
	EndsAt *time.Time `db:"ends_at" json:"ends_at,omitempty"`

	Status     AskStatus  `db:"status" json:"status"`
	ArchivedAt *time.Time `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// HasWindow reports whether the ask is time-boxed at all.
func (a *Ask) HasWindow() bool {
	return a.EndsAt != nil
}

// IsArchived reports whether the ask has been archived by its owner.
func (a *Ask) IsArchived() bool {
	return a.ArchivedAt != nil
}

// ScheduleValid reports whether exactly one scheduling shape is populated.
// A date range counts as one shape and requires both endpoints.
func (a *Ask) ScheduleValid() bool {
	shapes := 0
	if a.SingleDate != nil {
		shapes++
	}
	if a.DateRangeStart != nil || a.DateRangeEnd != nil {
		if a.DateRangeStart == nil || a.DateRangeEnd == nil {
			return false
		}
		shapes++
	}
	if a.NamedTerm != nil {
		shapes++
	}
	return shapes == 1
}

// ScheduleEnd returns the last day covered by the ask's scheduling terms,
// used to derive the relationship's expiry. Named terms have no calendar
// bound, so they return nil.
func (a *Ask) ScheduleEnd() *time.Time {
	if a.SingleDate != nil {
		return a.SingleDate
	}
	if a.DateRangeEnd != nil {
		return a.DateRangeEnd
	}
	return nil
}

// CreateAskRequest is the inbound payload for posting an ask.
type CreateAskRequest struct {
	OwnerName      string     `json:"owner_name" validate:"required"`
	CostType       CostType   `json:"cost_type" validate:"required,oneof=hourly per_unit flat"`
	CostAmount     float64    `json:"cost_amount" validate:"required,gt=0"`
	SingleDate     *time.Time `json:"single_date,omitempty"`
	DateRangeStart *time.Time `json:"date_range_start,omitempty"`
	DateRangeEnd   *time.Time `json:"date_range_end,omitempty"`
	NamedTerm      *string    `json:"named_term,omitempty"`
	Details        string     `json:"details"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
}
