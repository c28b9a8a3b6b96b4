package auction

import (
	"github.com/Ramsey-B/briar/pkg/models"
)

// DecorateSuperseded flags every bid whose bidder has a more recent bid on
// the same ask. Supersession is a display-only notion: the stored status of
// the older bid does not change, it simply stops being the bidder's live
// offer.
func DecorateSuperseded(bids []models.Bid) []models.BidView {
	latest := make(map[string]string, len(bids))
	for _, b := range bids {
		cur, ok := latest[b.BidderID]
		if !ok {
			latest[b.BidderID] = b.ID
			continue
		}
		if newerThan(b, byID(bids, cur)) {
			latest[b.BidderID] = b.ID
		}
	}

	views := make([]models.BidView, len(bids))
	for i, b := range bids {
		views[i] = models.BidView{
			Bid:        b,
			Superseded: latest[b.BidderID] != b.ID,
		}
	}
	return views
}

// ActiveBidOf returns the bidder's most recent bid, or nil when the bidder
// has no bids on the ask. The active bid is the one considered for
// acceptance and statistics.
func ActiveBidOf(bids []models.Bid, bidderID string) *models.Bid {
	var active *models.Bid
	for i := range bids {
		b := &bids[i]
		if b.BidderID != bidderID {
			continue
		}
		if active == nil || newerThan(*b, *active) {
			active = b
		}
	}
	return active
}

// PendingStatistics summarizes the pending bids on an ask: count, lowest
// amount, and average amount. Superseded bids still count while pending;
// only status filters the set.
func PendingStatistics(askID string, bids []models.Bid) models.BidStatistics {
	stats := models.BidStatistics{AskID: askID}
	var sum float64
	for _, b := range bids {
		if b.Status != models.BidStatusPending {
			continue
		}
		if stats.Count == 0 || b.Amount < stats.Lowest {
			stats.Lowest = b.Amount
		}
		stats.Count++
		sum += b.Amount
	}
	if stats.Count > 0 {
		stats.Average = sum / float64(stats.Count)
	}
	return stats
}

func newerThan(a, b models.Bid) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func byID(bids []models.Bid, id string) models.Bid {
	for _, b := range bids {
		if b.ID == id {
			return b
		}
	}
	return models.Bid{}
}
