package profile

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Repository is a read-only view of the profile store. Profile management
// belongs to another service; the engine only reads contact data at
// acceptance time to freeze it into the reveal.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new profile repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ContactOf returns the user's current contact data. The acceptance
// transaction copies the result; it is never linked live.
func (r *Repository) ContactOf(ctx context.Context, userID string) (models.ContactSnapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "profile.Repository.ContactOf")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("name", "email", "phone")
	sb.From("profiles")
	sb.Where(sb.Equal("user_id", userID))

	query, args := sb.Build()
	var snapshot models.ContactSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return models.ContactSnapshot{}, httperror.NewHTTPError(http.StatusNotFound, "profile not found")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to load profile contact")
		return models.ContactSnapshot{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load profile contact")
	}

	return snapshot, nil
}
