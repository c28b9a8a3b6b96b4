package ask

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	askrepo "github.com/Ramsey-B/briar/internal/repositories/ask"
	"github.com/Ramsey-B/briar/internal/repositories/contactreveal"
	"github.com/Ramsey-B/briar/pkg/auction"
	ctxutil "github.com/Ramsey-B/briar/pkg/context"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var validate = validator.New()

// Register registers ask routes
func Register(g *echo.Group) {
	g.POST("", Create)
	g.GET("", List)
	g.GET("/:id", Get)
	g.POST("/:id/archive", Archive)
	g.GET("/:id/contact", GetContactReveal)
	g.GET("/:id/watch", Watch)
}

// Create posts a new ask
func Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ask_handler.Create")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	var req models.CreateAskRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	lot := &models.Ask{
		OwnerID:        userID,
		OwnerName:      req.OwnerName,
		CostType:       req.CostType,
		CostAmount:     req.CostAmount,
		SingleDate:     req.SingleDate,
		DateRangeStart: req.DateRangeStart,
		DateRangeEnd:   req.DateRangeEnd,
		NamedTerm:      req.NamedTerm,
		Details:        req.Details,
		EndsAt:         req.EndsAt,
	}
	if !lot.ScheduleValid() {
		return httperror.NewHTTPError(http.StatusBadRequest, "exactly one of single_date, date range, or named_term is required")
	}
	if lot.EndsAt != nil && !lot.EndsAt.After(time.Now().UTC()) {
		return httperror.NewHTTPError(http.StatusBadRequest, "ends_at must be in the future")
	}

	ctx, repo, err := ectoinject.GetContext[*askrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := repo.Create(ctx, lot)
	if err != nil {
		return err
	}

	metrics.AsksCreatedTotal.Inc()
	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil {
		emitter.EmitAskCreated(ctx, created)
	}

	return c.JSON(http.StatusCreated, created)
}

// List returns asks filtered by status and owner
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ask_handler.List")
	defer span.End()

	status := c.QueryParam("status")
	ownerID := c.QueryParam("owner_id")
	if c.QueryParam("mine") == "true" {
		ownerID = ctxutil.GetUserID(ctx)
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	ctx, repo, err := ectoinject.GetContext[*askrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	asks, err := repo.List(ctx, status, ownerID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, asks)
}

// Get returns a single ask by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ask_handler.Get")
	defer span.End()

	ctx, repo, err := ectoinject.GetContext[*askrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	lot, err := repo.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, lot)
}

// Archive marks a resolved ask as archived. Owner-only.
func Archive(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ask_handler.Archive")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, engine, err := ectoinject.GetContext[*auction.Acceptance](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	lot, err := engine.Archive(ctx, c.Param("id"), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, lot)
}

// GetContactReveal returns the winning bidder's contact snapshot. Only the
// ask's owner may read it.
func GetContactReveal(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ask_handler.GetContactReveal")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*contactreveal.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	reveal, err := repo.GetByAsk(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if reveal.RequesterID != userID {
		return httperror.NewHTTPError(http.StatusForbidden, "only the ask owner may view the contact reveal")
	}

	return c.JSON(http.StatusOK, reveal)
}
