package ask

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

var askColumns = []string{
	"id", "owner_id", "owner_name", "cost_type", "cost_amount",
	"single_date", "date_range_start", "date_range_end", "named_term",
	"details", "ends_at", "status", "archived_at", "created_at",
}

// Repository handles ask persistence. The ask row is the serialization
// point for everything that happens to an auction: bid placement and
// acceptance both lock it before touching bids.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new ask repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// DB exposes the underlying handle so engines can own a transaction that
// spans several repositories.
func (r *Repository) DB() database.DB {
	return r.db
}

// Create persists a new ask in the active state.
func (r *Repository) Create(ctx context.Context, ask *models.Ask) (*models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.Create")
	defer span.End()

	if ask.ID == "" {
		ask.ID = uuid.New().String()
	}
	ask.Status = models.AskStatusActive
	ask.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("asks")
	sb.Cols(askColumns...)
	sb.Values(ask.ID, ask.OwnerID, ask.OwnerName, ask.CostType, ask.CostAmount,
		ask.SingleDate, ask.DateRangeStart, ask.DateRangeEnd, ask.NamedTerm,
		ask.Details, ask.EndsAt, ask.Status, ask.ArchivedAt, ask.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": ask.ID}).Error("Failed to create ask")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create ask")
	}

	return ask, nil
}

// Get retrieves an ask by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(askColumns...)
	sb.From("asks")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var ask models.Ask
	if err := r.db.GetContext(ctx, &ask, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "ask not found")
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get ask")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ask")
	}

	return &ask, nil
}

// GetForUpdate retrieves an ask and locks its row for the remainder of the
// transaction carried by ctx. Concurrent placements and acceptances on the
// same ask queue up here; different asks never contend.
func (r *Repository) GetForUpdate(ctx context.Context, id string) (*models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.GetForUpdate")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(askColumns...)
	sb.From("asks")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	query += " FOR UPDATE"

	var ask models.Ask
	if err := tx.GetContext(ctx, &ask, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "ask not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": id}).Error("Failed to lock ask")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to lock ask")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return &ask, nil
}

// List retrieves asks filtered by status and/or owner, newest first.
func (r *Repository) List(ctx context.Context, status string, ownerID string, limit int) ([]models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(askColumns...)
	sb.From("asks")

	where := []string{}
	if status != "" {
		where = append(where, sb.Equal("status", status))
	}
	if ownerID != "" {
		where = append(where, sb.Equal("owner_id", ownerID))
	}
	if len(where) > 0 {
		sb.Where(where...)
	}
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var asks []models.Ask
	if err := r.db.SelectContext(ctx, &asks, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list asks")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list asks")
	}

	return asks, nil
}

// UpdateEndsAt rewrites the auction window end. Only called from inside the
// bid-placement transaction when the anti-snipe rule fires.
func (r *Repository) UpdateEndsAt(ctx context.Context, id string, endsAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.UpdateEndsAt")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("asks")
	sb.Set(sb.Assign("ends_at", endsAt))
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": id}).Error("Failed to update ask end time")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update ask end time")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "ask not found")
	}

	return tx.Commit(ctx)
}

// SetStatus transitions an ask from one status to another as a
// compare-and-swap: the update only lands when the row still holds the
// expected status. Returns false when the guard missed.
func (r *Repository) SetStatus(ctx context.Context, id string, from, to models.AskStatus) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.SetStatus")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("asks")
	sb.Set(sb.Assign("status", to))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", from),
	)

	query, args := sb.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": id, "to": to}).Error("Failed to set ask status")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to set ask status")
	}

	rows, _ := result.RowsAffected()
	if err := tx.Commit(ctx); err != nil {
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}
	return rows > 0, nil
}

// Archive stamps the archival timestamp on a terminal ask.
func (r *Repository) Archive(ctx context.Context, id string, archivedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.Archive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("asks")
	sb.Set(sb.Assign("archived_at", archivedAt))
	sb.Where(
		sb.Equal("id", id),
		"archived_at IS NULL",
		sb.In("status", string(models.AskStatusCompleted), string(models.AskStatusExpired)),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"ask_id": id}).Error("Failed to archive ask")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to archive ask")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusConflict, "ask is not archivable")
	}

	return nil
}

// ListExpirable returns active asks whose window lapsed at or before now.
// Used by the expiry sweep; the lazy recheck inside bid placement covers the
// gap between lapse and sweep.
func (r *Repository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.ListExpirable")
	defer span.End()

	if limit < 1 || limit > 1000 {
		limit = 200
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(askColumns...)
	sb.From("asks")
	sb.Where(
		sb.Equal("status", models.AskStatusActive),
		"ends_at IS NOT NULL",
		sb.LessEqualThan("ends_at", now),
	)
	sb.OrderBy("ends_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var asks []models.Ask
	if err := r.db.SelectContext(ctx, &asks, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list expirable asks")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list expirable asks")
	}

	return asks, nil
}

// ListArchivable returns terminal asks past the archival cooldown that have
// not been archived yet.
func (r *Repository) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]models.Ask, error) {
	ctx, span := tracing.StartSpan(ctx, "ask.Repository.ListArchivable")
	defer span.End()

	if limit < 1 || limit > 1000 {
		limit = 200
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(askColumns...)
	sb.From("asks")
	sb.Where(
		sb.In("status", string(models.AskStatusCompleted), string(models.AskStatusExpired)),
		"archived_at IS NULL",
		sb.LessEqualThan("created_at", cutoff),
	)
	sb.OrderBy("created_at ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var asks []models.Ask
	if err := r.db.SelectContext(ctx, &asks, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list archivable asks")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list archivable asks")
	}

	return asks, nil
}
