package bid

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var bidColumns = []string{
	"id", "ask_id", "bidder_id", "bidder_name", "amount", "pitch", "status", "created_at",
}

// Repository handles bid persistence. Bids are append-only: rows are created
// while the auction is open and their status flips exactly once, during
// acceptance. Nothing ever deletes a bid.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new bid repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create appends a bid in the pending state. Runs inside the placement
// transaction holding the ask row lock.
func (r *Repository) Create(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.Create")
	defer span.End()

	if bid.ID == "" {
		bid.ID = uuid.New().String()
	}
	bid.Status = models.BidStatusPending
	bid.CreatedAt = time.Now().UTC()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("bids")
	sb.Cols(bidColumns...)
	sb.Values(bid.ID, bid.AskID, bid.BidderID, bid.BidderName, bid.Amount, bid.Pitch, bid.Status, bid.CreatedAt)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": bid.AskID, "bid_id": bid.ID}).Error("Failed to create bid")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create bid")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return bid, nil
}

// Get retrieves a bid by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Bid, error) {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(bidColumns...)
	sb.From("bids")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var bid models.Bid
	if err := r.db.GetContext(ctx, &bid, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "bid not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get bid")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get bid")
	}

	return &bid, nil
}

// ListByAsk retrieves every bid on an ask, oldest first.
func (r *Repository) ListByAsk(ctx context.Context, askID string) ([]models.Bid, error) {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.ListByAsk")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(bidColumns...)
	sb.From("bids")
	sb.Where(sb.Equal("ask_id", askID))
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var bids []models.Bid
	if err := r.db.SelectContext(ctx, &bids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": askID}).Error("Failed to list bids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list bids")
	}

	return bids, nil
}

// ActiveBidOf returns the bidder's most recent bid on the ask, or nil when
// they have none. Earlier bids from the same bidder are superseded for
// display but keep their stored status.
func (r *Repository) ActiveBidOf(ctx context.Context, askID, bidderID string) (*models.Bid, error) {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.ActiveBidOf")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(bidColumns...)
	sb.From("bids")
	sb.Where(
		sb.Equal("ask_id", askID),
		sb.Equal("bidder_id", bidderID),
	)
	sb.OrderBy("created_at DESC", "id DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var bid models.Bid
	if err := r.db.GetContext(ctx, &bid, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get active bid")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get active bid")
	}

	return &bid, nil
}

// SetStatus flips a single bid's status. Runs inside the acceptance
// transaction.
func (r *Repository) SetStatus(ctx context.Context, id string, status models.BidStatus) error {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.SetStatus")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("bids")
	sb.Set(sb.Assign("status", status))
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"bid_id": id, "status": status}).Error("Failed to set bid status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set bid status")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "bid not found")
	}

	return tx.Commit(ctx)
}

// RejectAllExcept flips every bid on the ask except the winner to rejected,
// regardless of current status. Runs inside the acceptance transaction so
// readers never observe a pending bid next to an accepted one.
func (r *Repository) RejectAllExcept(ctx context.Context, askID, winnerBidID string) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.RejectAllExcept")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("bids")
	sb.Set(sb.Assign("status", models.BidStatusRejected))
	sb.Where(
		sb.Equal("ask_id", askID),
		sb.NotEqual("id", winnerBidID),
	)

	query, args := sb.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": askID}).Error("Failed to reject rival bids")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reject rival bids")
	}

	rows, _ := result.RowsAffected()
	if err := tx.Commit(ctx); err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return rows, nil
}

// CountAccepted returns the number of accepted bids on an ask. The
// acceptance transaction uses it as its idempotency guard; the value is only
// trustworthy while the ask row lock is held.
func (r *Repository) CountAccepted(ctx context.Context, askID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "bid.Repository.CountAccepted")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("bids")
	sb.Where(
		sb.Equal("ask_id", askID),
		sb.Equal("status", models.BidStatusAccepted),
	)

	query, args := sb.Build()
	var count int
	if err := tx.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count accepted bids")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count accepted bids")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return count, nil
}
