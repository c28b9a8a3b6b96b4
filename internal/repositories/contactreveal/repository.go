package contactreveal

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

var revealColumns = []string{
	"id", "ask_id", "bid_id", "requester_id", "provider_id", "contact", "revealed_at",
}

// Repository handles contact reveal persistence. Reveals are written once by
// the acceptance transaction and never mutated.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new contact reveal repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists the contact snapshot. Runs inside the acceptance
// transaction; ON CONFLICT keeps the reveal at-most-once per (ask, bid)
// under retries.
func (r *Repository) Create(ctx context.Context, reveal *models.ContactReveal) (*models.ContactReveal, error) {
	ctx, span := tracing.StartSpan(ctx, "contactreveal.Repository.Create")
	defer span.End()

	if reveal.ID == "" {
		reveal.ID = uuid.New().String()
	}
	reveal.RevealedAt = time.Now().UTC()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("contact_reveals")
	sb.Cols(revealColumns...)
	sb.Values(reveal.ID, reveal.AskID, reveal.BidID, reveal.RequesterID, reveal.ProviderID, reveal.Contact, reveal.RevealedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (ask_id, bid_id) DO NOTHING"

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": reveal.AskID, "bid_id": reveal.BidID}).Error("Failed to create contact reveal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create contact reveal")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return reveal, nil
}

// GetByAsk retrieves the reveal for an ask. The caller is responsible for
// checking that the reader owns the ask.
func (r *Repository) GetByAsk(ctx context.Context, askID string) (*models.ContactReveal, error) {
	ctx, span := tracing.StartSpan(ctx, "contactreveal.Repository.GetByAsk")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(revealColumns...)
	sb.From("contact_reveals")
	sb.Where(sb.Equal("ask_id", askID))
	sb.Limit(1)

	query, args := sb.Build()
	var reveal models.ContactReveal
	if err := r.db.GetContext(ctx, &reveal, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "contact reveal not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get contact reveal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contact reveal")
	}

	return &reveal, nil
}
