package auction

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/internal/repositories/ask"
	"github.com/Ramsey-B/briar/internal/repositories/bid"
	"github.com/Ramsey-B/briar/internal/repositories/contactreveal"
	"github.com/Ramsey-B/briar/internal/repositories/relationship"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// CodeFormer produces the next collaboration code for a bidder/requester pair
type CodeFormer interface {
	Code(ctx context.Context, bidderName, requesterName, bidderID, requesterID string) string
}

// ProfileSource resolves a user's contact details for the reveal snapshot
type ProfileSource interface {
	ContactOf(ctx context.Context, userID string) (models.ContactSnapshot, error)
}

// Acceptance resolves an auction. Accepting a bid rejects every rival,
// completes the ask, forms the relationship, and snapshots the winning
// bidder's contact details for the requester, all in one transaction.
type Acceptance struct {
	askRepo    *ask.Repository
	bidRepo    *bid.Repository
	relRepo    *relationship.Repository
	revealRepo *contactreveal.Repository
	profiles   ProfileSource
	former     CodeFormer
	locker     *redis.Locker
	cache      *redis.Cache
	emitter    *events.Emitter
	logger     ectologger.Logger
}

// NewAcceptance creates a new acceptance engine
func NewAcceptance(
	askRepo *ask.Repository,
	bidRepo *bid.Repository,
	relRepo *relationship.Repository,
	revealRepo *contactreveal.Repository,
	profiles ProfileSource,
	former CodeFormer,
	locker *redis.Locker,
	cache *redis.Cache,
	emitter *events.Emitter,
	logger ectologger.Logger,
) *Acceptance {
	return &Acceptance{
		askRepo:    askRepo,
		bidRepo:    bidRepo,
		relRepo:    relRepo,
		revealRepo: revealRepo,
		profiles:   profiles,
		former:     former,
		locker:     locker,
		cache:      cache,
		emitter:    emitter,
		logger:     logger,
	}
}

func (a *Acceptance) withAskLock(ctx context.Context, askID string, fn func() error) error {
	if a.locker == nil {
		return fn()
	}
	return a.locker.WithLock(ctx, "ask:"+askID, lockTTL, fn)
}

// Accept resolves the ask in favor of the given bid. Owner-only. Safe to
// retry: a repeat lands on AlreadyResolved once the first attempt commits,
// and the per-pair unique constraint on relationships backs that up.
func (a *Acceptance) Accept(ctx context.Context, askID, bidID, actorID string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "auction.Acceptance.Accept")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.AcceptDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		lot    *models.Ask
		winner *models.Bid
		losers []models.Bid
		rel    *models.Relationship
		reveal *models.ContactReveal
	)

	err := a.withAskLock(ctx, askID, func() error {
		ctxTx, tx, err := a.askRepo.DB().GetTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctxTx)

		lot, err = a.askRepo.GetForUpdate(ctxTx, askID)
		if err != nil {
			return askNotFound(err, askID)
		}

		if err := CheckAcceptable(lot, actorID); err != nil {
			return err
		}

		// Belt and suspenders under the row lock: a crashed prior attempt
		// could have accepted the bid without completing the ask.
		accepted, err := a.bidRepo.CountAccepted(ctxTx, askID)
		if err != nil {
			return err
		}
		if accepted > 0 {
			return ErrAlreadyResolved(askID)
		}

		winner, err = a.bidRepo.Get(ctxTx, bidID)
		if err != nil {
			if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
				return ErrBidNotFound(bidID)
			}
			return err
		}
		if winner.AskID != askID {
			return ErrBidNotFound(bidID)
		}

		all, err := a.bidRepo.ListByAsk(ctxTx, askID)
		if err != nil {
			return err
		}
		for _, b := range all {
			if b.ID != winner.ID && b.Status == models.BidStatusPending {
				losers = append(losers, b)
			}
		}

		if err := a.bidRepo.SetStatus(ctxTx, winner.ID, models.BidStatusAccepted); err != nil {
			return err
		}
		if _, err := a.bidRepo.RejectAllExcept(ctxTx, askID, winner.ID); err != nil {
			return err
		}

		flipped, err := a.askRepo.SetStatus(ctxTx, askID, models.AskStatusActive, models.AskStatusCompleted)
		if err != nil {
			return err
		}
		if !flipped {
			return ErrAlreadyResolved(askID)
		}
		lot.Status = models.AskStatusCompleted

		code := a.former.Code(ctxTx, winner.BidderName, lot.OwnerName, winner.BidderID, lot.OwnerID)

		rel, err = a.relRepo.Create(ctxTx, &models.Relationship{
			Code:          code,
			RequesterID:   lot.OwnerID,
			RequesterName: lot.OwnerName,
			ProviderID:    winner.BidderID,
			ProviderName:  winner.BidderName,
			AskID:         askID,
			BidID:         winner.ID,
			PaymentTerms: database.JSONB[models.PaymentTerms]{Data: models.PaymentTerms{
				CostType: lot.CostType,
				Amount:   winner.Amount,
			}},
			ExpiresAt: lot.ScheduleEnd(),
		})
		if err != nil {
			return err
		}

		reveal, err = a.createReveal(ctxTx, lot, winner)
		if err != nil {
			return err
		}

		winner.Status = models.BidStatusAccepted
		return tx.Commit(ctxTx)
	})
	if err != nil {
		return nil, err
	}

	metrics.AsksResolvedTotal.WithLabelValues("completed").Inc()
	metrics.RelationshipsFormedTotal.Inc()
	metrics.BidsRejectedTotal.WithLabelValues("outbid").Add(float64(len(losers)))

	invalidateStatistics(ctx, a.cache, a.logger, askID)

	a.emitter.EmitBidAccepted(ctx, winner, actorID)
	a.emitter.EmitBidsRejected(ctx, losers, actorID)
	a.emitter.EmitAskResolved(ctx, lot, actorID)
	a.emitter.EmitRelationshipFormed(ctx, rel)
	if reveal != nil {
		a.emitter.EmitContactRevealed(ctx, askID, winner.ID, lot.OwnerID)
	}

	return rel, nil
}

// createReveal snapshots the winning bidder's contact details for the
// requester, returning nil when the snapshot was skipped. A missing profile
// is logged, not fatal: acceptance must not hinge on profile completeness.
func (a *Acceptance) createReveal(ctx context.Context, lot *models.Ask, winner *models.Bid) (*models.ContactReveal, error) {
	contact, err := a.profiles.ContactOf(ctx, winner.BidderID)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"ask_id":    lot.ID,
			"bidder_id": winner.BidderID,
		}).Warn("Contact lookup failed, skipping reveal snapshot")
		return nil, nil
	}

	return a.revealRepo.Create(ctx, &models.ContactReveal{
		AskID:       lot.ID,
		BidID:       winner.ID,
		RequesterID: lot.OwnerID,
		ProviderID:  winner.BidderID,
		Contact:     database.JSONB[models.ContactSnapshot]{Data: contact},
	})
}

// Archive marks a completed ask as archived. Owner-only and one-way; expired
// asks are left to the cooldown sweep.
func (a *Acceptance) Archive(ctx context.Context, askID, actorID string) (*models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "auction.Acceptance.Archive")
	defer span.End()

	lot, err := a.askRepo.Get(ctx, askID)
	if err != nil {
		return nil, askNotFound(err, askID)
	}

	if err := CheckArchivable(lot, actorID); err != nil {
		return nil, err
	}

	archivedAt := time.Now().UTC()
	if err := a.askRepo.Archive(ctx, askID, archivedAt); err != nil {
		return nil, err
	}
	lot.ArchivedAt = &archivedAt

	a.emitter.EmitAskArchived(ctx, lot, actorID)
	return lot, nil
}
