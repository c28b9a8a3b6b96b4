package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/briar/pkg/models"
)

func newActiveAsk(ownerID string, endsAt *time.Time) *models.Ask {
	return &models.Ask{
		ID:         "ask-1",
		OwnerID:    ownerID,
		OwnerName:  "Mary Smith",
		CostType:   models.CostTypePerUnit,
		CostAmount: 100,
		Status:     models.AskStatusActive,
		EndsAt:     endsAt,
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     models.AskStatus
		to       models.AskStatus
		expected bool
	}{
		{name: "active to completed", from: models.AskStatusActive, to: models.AskStatusCompleted, expected: true},
		{name: "active to expired", from: models.AskStatusActive, to: models.AskStatusExpired, expected: true},
		{name: "completed is terminal", from: models.AskStatusCompleted, to: models.AskStatusExpired, expected: false},
		{name: "expired is terminal", from: models.AskStatusExpired, to: models.AskStatusCompleted, expected: false},
		{name: "no self transition", from: models.AskStatusActive, to: models.AskStatusActive, expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, ValidTransition(test.from, test.to))
		})
	}
}

func TestCheckBiddable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	t.Run("active ask with open window is biddable", func(t *testing.T) {
		assert.NoError(t, CheckBiddable(newActiveAsk("owner-1", &future), now))
	})

	t.Run("active ask without a window is biddable", func(t *testing.T) {
		assert.NoError(t, CheckBiddable(newActiveAsk("owner-1", nil), now))
	})

	t.Run("lapsed window is closed", func(t *testing.T) {
		err := CheckBiddable(newActiveAsk("owner-1", &past), now)
		assert.True(t, IsAuctionClosed(err))
	})

	t.Run("window ending exactly now is closed", func(t *testing.T) {
		boundary := now
		err := CheckBiddable(newActiveAsk("owner-1", &boundary), now)
		assert.True(t, IsAuctionClosed(err))
	})

	t.Run("completed ask is closed", func(t *testing.T) {
		lot := newActiveAsk("owner-1", &future)
		lot.Status = models.AskStatusCompleted
		err := CheckBiddable(lot, now)
		assert.True(t, IsAuctionClosed(err))
	})

	t.Run("archived ask is closed", func(t *testing.T) {
		lot := newActiveAsk("owner-1", &future)
		archivedAt := now.Add(-time.Hour)
		lot.ArchivedAt = &archivedAt
		err := CheckBiddable(lot, now)
		assert.True(t, IsAuctionClosed(err))
	})
}

func TestCheckAcceptable(t *testing.T) {
	t.Run("owner may accept on an active ask", func(t *testing.T) {
		assert.NoError(t, CheckAcceptable(newActiveAsk("owner-1", nil), "owner-1"))
	})

	t.Run("non-owner may not accept", func(t *testing.T) {
		err := CheckAcceptable(newActiveAsk("owner-1", nil), "someone-else")
		assert.True(t, IsNotOwner(err))
	})

	t.Run("resolved ask may not be accepted again", func(t *testing.T) {
		lot := newActiveAsk("owner-1", nil)
		lot.Status = models.AskStatusCompleted
		err := CheckAcceptable(lot, "owner-1")
		assert.True(t, IsAlreadyResolved(err))
	})

	t.Run("lapsed window does not block acceptance while still active", func(t *testing.T) {
		past := time.Now().UTC().Add(-time.Hour)
		lot := newActiveAsk("owner-1", &past)
		assert.NoError(t, CheckAcceptable(lot, "owner-1"))
	})
}

func TestCheckArchivable(t *testing.T) {
	now := time.Now().UTC()

	t.Run("owner may archive a completed ask", func(t *testing.T) {
		lot := newActiveAsk("owner-1", nil)
		lot.Status = models.AskStatusCompleted
		assert.NoError(t, CheckArchivable(lot, "owner-1"))
	})

	t.Run("active ask may not be archived", func(t *testing.T) {
		err := CheckArchivable(newActiveAsk("owner-1", nil), "owner-1")
		assert.True(t, IsAlreadyResolved(err))
	})

	t.Run("owner may not archive an expired ask", func(t *testing.T) {
		lot := newActiveAsk("owner-1", nil)
		lot.Status = models.AskStatusExpired
		err := CheckArchivable(lot, "owner-1")
		assert.True(t, IsAlreadyResolved(err))
	})

	t.Run("non-owner may not archive", func(t *testing.T) {
		lot := newActiveAsk("owner-1", nil)
		lot.Status = models.AskStatusCompleted
		err := CheckArchivable(lot, "someone-else")
		assert.True(t, IsNotOwner(err))
	})

	t.Run("archival is one-way", func(t *testing.T) {
		lot := newActiveAsk("owner-1", nil)
		lot.Status = models.AskStatusCompleted
		lot.ArchivedAt = &now
		err := CheckArchivable(lot, "owner-1")
		assert.True(t, IsAlreadyResolved(err))
	})
}

func TestExpirable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		ask      *models.Ask
		expected bool
	}{
		{name: "lapsed active ask is expirable", ask: newActiveAsk("o", &past), expected: true},
		{name: "open window is not expirable", ask: newActiveAsk("o", &future), expected: false},
		{name: "no window never expires", ask: newActiveAsk("o", nil), expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Expirable(test.ask, now))
		})
	}

	t.Run("resolved ask is not expirable", func(t *testing.T) {
		lot := newActiveAsk("o", &past)
		lot.Status = models.AskStatusCompleted
		assert.False(t, Expirable(lot, now))
	})
}
