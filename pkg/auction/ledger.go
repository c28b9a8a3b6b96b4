package auction

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/internal/repositories/ask"
	"github.com/Ramsey-B/briar/internal/repositories/bid"
	"github.com/Ramsey-B/briar/pkg/clock"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// lockTTL bounds how long an ask mutation may hold its distributed lock.
const lockTTL = 10 * time.Second

// LedgerConfig holds the tunable bidding rules
type LedgerConfig struct {
	// MustBeatLowest enforces that every bid undercuts the current lowest
	// pending bid. Off by default: rebidding at any positive amount is
	// allowed and display-level supersession sorts it out.
	MustBeatLowest bool
}

// Ledger is the bid intake engine. Placement runs under a per-ask
// distributed lock plus a row lock on the ask, so the biddable check, the
// anti-snipe extension, and the insert are one atomic decision.
type Ledger struct {
	askRepo  *ask.Repository
	bidRepo  *bid.Repository
	locker   *redis.Locker
	cache    *redis.Cache
	extender Extender
	clock    clock.Clock
	emitter  *events.Emitter
	logger   ectologger.Logger
	cfg      LedgerConfig
}

// NewLedger creates a new bid ledger
func NewLedger(
	askRepo *ask.Repository,
	bidRepo *bid.Repository,
	locker *redis.Locker,
	cache *redis.Cache,
	extender Extender,
	clk clock.Clock,
	emitter *events.Emitter,
	logger ectologger.Logger,
	cfg LedgerConfig,
) *Ledger {
	return &Ledger{
		askRepo:  askRepo,
		bidRepo:  bidRepo,
		locker:   locker,
		cache:    cache,
		extender: extender,
		clock:    clk,
		emitter:  emitter,
		logger:   logger,
		cfg:      cfg,
	}
}

func (l *Ledger) withAskLock(ctx context.Context, askID string, fn func() error) error {
	if l.locker == nil {
		return fn()
	}
	return l.locker.WithLock(ctx, "ask:"+askID, lockTTL, fn)
}

// Place records a new bid on an ask. The ask row is locked for the duration
// so concurrent placements and acceptance serialize; an ask found lapsed is
// flipped to expired on the spot instead of waiting for the sweeper.
func (l *Ledger) Place(ctx context.Context, askID, bidderID string, req *models.PlaceBidRequest) (*models.Bid, error) {
	ctx, span := tracing.StartSpan(ctx, "auction.Ledger.Place")
	defer span.End()

	var (
		placed      *models.Bid
		expiredAsk  *models.Ask
		extended    bool
		previousEnd time.Time
		newEnd      time.Time
	)

	err := l.withAskLock(ctx, askID, func() error {
		ctxTx, tx, err := l.askRepo.DB().GetTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctxTx)

		lot, err := l.askRepo.GetForUpdate(ctxTx, askID)
		if err != nil {
			return askNotFound(err, askID)
		}

		now := l.clock.Now()

		if Expirable(lot, now) {
			if _, err := l.askRepo.SetStatus(ctxTx, lot.ID, models.AskStatusActive, models.AskStatusExpired); err != nil {
				return err
			}
			if err := tx.Commit(ctxTx); err != nil {
				return err
			}
			lot.Status = models.AskStatusExpired
			expiredAsk = lot
			return ErrAuctionClosed(lot.ID)
		}

		if err := CheckBiddable(lot, now); err != nil {
			return err
		}

		if l.cfg.MustBeatLowest {
			existing, err := l.bidRepo.ListByAsk(ctxTx, askID)
			if err != nil {
				return err
			}
			stats := PendingStatistics(askID, existing)
			if stats.Count > 0 && req.Amount >= stats.Lowest {
				return ErrBidNotLowest(askID, stats.Lowest)
			}
		}

		if lot.EndsAt != nil {
			if extendedEnd, ok := l.extender.Extend(now, *lot.EndsAt); ok {
				if err := l.askRepo.UpdateEndsAt(ctxTx, lot.ID, extendedEnd); err != nil {
					return err
				}
				extended = true
				previousEnd = *lot.EndsAt
				newEnd = extendedEnd
			}
		}

		placed, err = l.bidRepo.Create(ctxTx, &models.Bid{
			AskID:      askID,
			BidderID:   bidderID,
			BidderName: req.BidderName,
			Amount:     req.Amount,
			Pitch:      req.Pitch,
		})
		if err != nil {
			return err
		}

		return tx.Commit(ctxTx)
	})
	if err != nil {
		if expiredAsk != nil {
			metrics.AsksResolvedTotal.WithLabelValues("expired").Inc()
			l.emitter.EmitAskExpired(ctx, expiredAsk)
		}
		if IsAuctionClosed(err) {
			metrics.BidsRejectedTotal.WithLabelValues("closed").Inc()
		}
		return nil, err
	}

	metrics.BidsPlacedTotal.Inc()
	invalidateStatistics(ctx, l.cache, l.logger, askID)

	l.emitter.EmitBidPlaced(ctx, placed)
	if extended {
		metrics.ExtensionsTotal.Inc()
		l.emitter.EmitAskExtended(ctx, askID, previousEnd, newEnd, placed.ID)
	}

	return placed, nil
}

// ActiveBid returns the bidder's most recent bid on the ask, nil when the
// bidder has not bid.
func (l *Ledger) ActiveBid(ctx context.Context, askID, bidderID string) (*models.Bid, error) {
	ctx, span := tracing.StartSpan(ctx, "auction.Ledger.ActiveBid")
	defer span.End()

	if _, err := l.askRepo.Get(ctx, askID); err != nil {
		return nil, askNotFound(err, askID)
	}
	return l.bidRepo.ActiveBidOf(ctx, askID, bidderID)
}

// ListBids returns the ask's bids, oldest first, decorated with the
// supersession flag.
func (l *Ledger) ListBids(ctx context.Context, askID string) ([]models.BidView, error) {
	ctx, span := tracing.StartSpan(ctx, "auction.Ledger.ListBids")
	defer span.End()

	if _, err := l.askRepo.Get(ctx, askID); err != nil {
		return nil, askNotFound(err, askID)
	}

	bids, err := l.bidRepo.ListByAsk(ctx, askID)
	if err != nil {
		return nil, err
	}
	return DecorateSuperseded(bids), nil
}

// Statistics returns count, lowest, and average over pending bids, served
// from the cache between writes.
func (l *Ledger) Statistics(ctx context.Context, askID string) (*models.BidStatistics, error) {
	ctx, span := tracing.StartSpan(ctx, "auction.Ledger.Statistics")
	defer span.End()

	if l.cache != nil {
		var cached models.BidStatistics
		if err := l.cache.Get(ctx, statisticsKey(askID), &cached); err == nil {
			return &cached, nil
		} else if err != redis.ErrCacheMiss {
			l.logger.WithContext(ctx).WithError(err).Warn("Bid statistics cache read failed")
		}
	}

	if _, err := l.askRepo.Get(ctx, askID); err != nil {
		return nil, askNotFound(err, askID)
	}

	bids, err := l.bidRepo.ListByAsk(ctx, askID)
	if err != nil {
		return nil, err
	}

	stats := PendingStatistics(askID, bids)

	if l.cache != nil {
		if err := l.cache.Set(ctx, statisticsKey(askID), stats); err != nil {
			l.logger.WithContext(ctx).WithError(err).Warn("Bid statistics cache write failed")
		}
	}

	return &stats, nil
}

// invalidateStatistics drops the cached bid statistics after any write that
// changes the pending set: placement and acceptance both call it.
func invalidateStatistics(ctx context.Context, cache *redis.Cache, logger ectologger.Logger, askID string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, statisticsKey(askID)); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("Bid statistics cache invalidation failed")
	}
}

func statisticsKey(askID string) string {
	return "stats:" + askID
}
