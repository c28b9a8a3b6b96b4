package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/briar/pkg/models"
)

func bidAt(id, bidderID string, amount float64, status models.BidStatus, at time.Time) models.Bid {
	return models.Bid{
		ID:        id,
		AskID:     "ask-1",
		BidderID:  bidderID,
		Amount:    amount,
		Status:    status,
		CreatedAt: at,
	}
}

func TestDecorateSuperseded(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	bids := []models.Bid{
		bidAt("b1", "alice", 90, models.BidStatusPending, base),
		bidAt("b2", "bob", 85, models.BidStatusPending, base.Add(time.Minute)),
		bidAt("b3", "alice", 80, models.BidStatusPending, base.Add(2*time.Minute)),
	}

	views := DecorateSuperseded(bids)

	assert.Len(t, views, 3)
	assert.True(t, views[0].Superseded, "alice's first bid should be superseded by her rebid")
	assert.False(t, views[1].Superseded, "bob's only bid is his live offer")
	assert.False(t, views[2].Superseded, "alice's rebid is her live offer")
}

func TestDecorateSuperseded_TieBreaksByID(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	bids := []models.Bid{
		bidAt("b1", "alice", 90, models.BidStatusPending, at),
		bidAt("b2", "alice", 85, models.BidStatusPending, at),
	}

	views := DecorateSuperseded(bids)

	assert.True(t, views[0].Superseded)
	assert.False(t, views[1].Superseded)
}

func TestActiveBidOf(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	bids := []models.Bid{
		bidAt("b1", "alice", 90, models.BidStatusPending, base),
		bidAt("b2", "bob", 85, models.BidStatusPending, base.Add(time.Minute)),
		bidAt("b3", "alice", 80, models.BidStatusPending, base.Add(2*time.Minute)),
	}

	active := ActiveBidOf(bids, "alice")
	assert.NotNil(t, active)
	assert.Equal(t, "b3", active.ID)

	assert.Nil(t, ActiveBidOf(bids, "carol"))
}

func TestPendingStatistics(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("computed over pending bids only", func(t *testing.T) {
		bids := []models.Bid{
			bidAt("b1", "alice", 90, models.BidStatusPending, base),
			bidAt("b2", "bob", 80, models.BidStatusPending, base.Add(time.Minute)),
			bidAt("b3", "carol", 10, models.BidStatusRejected, base.Add(2*time.Minute)),
		}

		stats := PendingStatistics("ask-1", bids)

		assert.Equal(t, "ask-1", stats.AskID)
		assert.Equal(t, 2, stats.Count)
		assert.Equal(t, 80.0, stats.Lowest)
		assert.Equal(t, 85.0, stats.Average)
	})

	t.Run("superseded pending bids still count", func(t *testing.T) {
		bids := []models.Bid{
			bidAt("b1", "alice", 90, models.BidStatusPending, base),
			bidAt("b2", "alice", 70, models.BidStatusPending, base.Add(time.Minute)),
		}

		stats := PendingStatistics("ask-1", bids)

		assert.Equal(t, 2, stats.Count)
		assert.Equal(t, 70.0, stats.Lowest)
		assert.Equal(t, 80.0, stats.Average)
	})

	t.Run("no bids", func(t *testing.T) {
		stats := PendingStatistics("ask-1", nil)

		assert.Equal(t, 0, stats.Count)
		assert.Equal(t, 0.0, stats.Lowest)
		assert.Equal(t, 0.0, stats.Average)
	})
}
