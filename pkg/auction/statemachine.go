package auction

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/clock"
	"github.com/Ramsey-B/briar/pkg/models"
)

// The ask lifecycle:
//
//	active --accept--> completed
//	active --sweep/lazy check--> expired
//
// completed and expired are terminal; both additionally gain an archival
// timestamp after a cooldown. No transition ever leaves a terminal state.

// ValidTransition reports whether an ask status change is legal.
func ValidTransition(from, to models.AskStatus) bool {
	if from != models.AskStatusActive {
		return false
	}
	return to == models.AskStatusCompleted || to == models.AskStatusExpired
}

// CheckBiddable validates that a bid may be placed on the ask at now.
// Must be re-evaluated inside the placement transaction: the answer can
// change between a read and the insert.
func CheckBiddable(ask *models.Ask, now time.Time) error {
	if ask.Status != models.AskStatusActive || ask.IsArchived() {
		return ErrAuctionClosed(ask.ID)
	}
	if ask.EndsAt != nil && clock.IsExpired(now, *ask.EndsAt) {
		return ErrAuctionClosed(ask.ID)
	}
	return nil
}

// CheckAcceptable validates that a bid on the ask may be accepted by actor.
// Late acceptance is deliberate: an ask whose window has lapsed but whose
// status has not yet been swept to expired can still be resolved by its
// owner, so only the stored status is consulted, never the clock.
func CheckAcceptable(ask *models.Ask, actorID string) error {
	if ask.OwnerID != actorID {
		return ErrNotOwner(ask.ID)
	}
	if ask.Status != models.AskStatusActive {
		return ErrAlreadyResolved(ask.ID)
	}
	return nil
}

// CheckArchivable validates that the owner may archive the ask. The owner
// can only archive a completed ask, and archival is one-way. Expired asks
// are archived by the cooldown sweep instead.
func CheckArchivable(ask *models.Ask, actorID string) error {
	if ask.OwnerID != actorID {
		return ErrNotOwner(ask.ID)
	}
	if ask.Status != models.AskStatusCompleted || ask.IsArchived() {
		return ErrAlreadyResolved(ask.ID)
	}
	return nil
}

// Expirable reports whether the sweep should flip the ask to expired at now.
func Expirable(ask *models.Ask, now time.Time) bool {
	if ask.Status != models.AskStatusActive || ask.EndsAt == nil {
		return false
	}
	return clock.IsExpired(now, *ask.EndsAt)
}
