package relationship

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

var relationshipColumns = []string{
	"id", "code", "requester_id", "requester_name", "provider_id", "provider_name",
	"ask_id", "bid_id", "status", "payment_terms", "expires_at",
	"last_activity_at", "requester_unread", "provider_unread", "created_at",
}

// Repository handles relationship persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create persists a relationship. Runs inside the acceptance transaction;
// the unique constraint on (ask_id, bid_id) backs the exactly-once
// invariant under concurrent retries.
func (r *Repository) Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Create")
	defer span.End()

	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	if rel.Status == "" {
		rel.Status = models.RelationshipStatusActive
	}
	rel.CreatedAt = time.Now().UTC()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("relationships")
	sb.Cols(relationshipColumns...)
	sb.Values(rel.ID, rel.Code, rel.RequesterID, rel.RequesterName, rel.ProviderID, rel.ProviderName,
		rel.AskID, rel.BidID, rel.Status, rel.PaymentTerms, rel.ExpiresAt,
		rel.LastActivityAt, rel.RequesterUnread, rel.ProviderUnread, rel.CreatedAt)

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": rel.AskID, "bid_id": rel.BidID}).Error("Failed to create relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return rel, nil
}

// Get retrieves a relationship by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(relationshipColumns...)
	sb.From("relationships")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var rel models.Relationship
	if err := r.db.GetContext(ctx, &rel, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship")
	}

	return &rel, nil
}

// ListByParty retrieves relationships where the user is either side, newest
// first.
func (r *Repository) ListByParty(ctx context.Context, userID string, limit int) ([]models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListByParty")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(relationshipColumns...)
	sb.From("relationships")
	sb.Where(
		sb.Or(
			sb.Equal("requester_id", userID),
			sb.Equal("provider_id", userID),
		),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var rels []models.Relationship
	if err := r.db.SelectContext(ctx, &rels, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return rels, nil
}

// CodesForPair returns every collaboration code between the two identities,
// in either party order. The code generator scans these for the highest
// sequence suffix.
func (r *Repository) CodesForPair(ctx context.Context, partyA, partyB string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.CodesForPair")
	defer span.End()

	query := `
		SELECT code FROM relationships
		WHERE (requester_id = $1 AND provider_id = $2)
		   OR (requester_id = $2 AND provider_id = $1)
	`

	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, partyA, partyB); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load codes for pair")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load codes for pair")
	}

	return codes, nil
}

// ExpireLapsed flips active relationships whose derived expiry has passed.
// Returns the affected IDs so the sweep can emit change events for them.
func (r *Repository) ExpireLapsed(ctx context.Context, now time.Time) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ExpireLapsed")
	defer span.End()

	query := `
		UPDATE relationships
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at <= $3
		RETURNING id
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.RelationshipStatusExpired, models.RelationshipStatusActive, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to expire relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to expire relationships")
	}

	return ids, nil
}
