package relationship

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	relrepo "github.com/Ramsey-B/briar/internal/repositories/relationship"
	ctxutil "github.com/Ramsey-B/briar/pkg/context"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Register registers relationship routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/:id", Get)
}

// List returns the caller's relationships, newest first
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.List")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	ctx, repo, err := ectoinject.GetContext[*relrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rels, err := repo.ListByParty(ctx, userID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rels)
}

// Get returns a single relationship. Only its two parties may read it.
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "relationship_handler.Get")
	defer span.End()

	userID := ctxutil.GetUserID(ctx)
	if userID == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "user id is required")
	}

	ctx, repo, err := ectoinject.GetContext[*relrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rel, err := repo.Get(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if rel.RequesterID != userID && rel.ProviderID != userID {
		return httperror.NewHTTPError(http.StatusForbidden, "not a party to this relationship")
	}

	return c.JSON(http.StatusOK, rel)
}
