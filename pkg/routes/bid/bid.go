package bid

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/briar/pkg/auction"
	ctxutil "github.com/Ramsey-B/briar/pkg/context"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var validate = validator.New()

// Register registers bid routes on the asks group
func Register(g *echo.Group) {
	g.POST("/:id/bids", Place)
	g.GET("/:id/bids", List)
	g.GET("/:id/bids/active", ActiveBid)
	g.GET("/:id/bids/statistics", Statistics)
	g.POST("/:id/bids/:bidId/accept", Accept)
}

// Place submits a bid on an ask
func Place(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "bid_handler.Place")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	var req models.PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, ledger, err := ectoinject.GetContext[*auction.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	placed, err := ledger.Place(ctx, c.Param("id"), userID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, placed)
}

// List returns an ask's bids, oldest first, with supersession flags
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "bid_handler.List")
	defer span.End()

	ctx, ledger, err := ectoinject.GetContext[*auction.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	bids, err := ledger.ListBids(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, bids)
}

// ActiveBid returns the caller's most recent bid on the ask
func ActiveBid(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "bid_handler.ActiveBid")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, ledger, err := ectoinject.GetContext[*auction.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	active, err := ledger.ActiveBid(ctx, c.Param("id"), userID)
	if err != nil {
		return err
	}
	if active == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no bid placed on this ask")
	}

	return c.JSON(http.StatusOK, active)
}

// Statistics returns count, lowest, and average over pending bids
func Statistics(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "bid_handler.Statistics")
	defer span.End()

	ctx, ledger, err := ectoinject.GetContext[*auction.Ledger](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	stats, err := ledger.Statistics(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}

// Accept resolves the ask in favor of one bid. Owner-only.
func Accept(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "bid_handler.Accept")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, engine, err := ectoinject.GetContext[*auction.Acceptance](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rel, err := engine.Accept(ctx, c.Param("id"), c.Param("bidId"), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rel)
}
