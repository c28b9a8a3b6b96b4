package ask

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	askrepo "github.com/Ramsey-B/briar/internal/repositories/ask"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// keepAliveInterval is how often the watch stream sends a comment to keep
// intermediaries from closing an idle connection.
const keepAliveInterval = 15 * time.Second

// Watch streams an ask's lifecycle events as server-sent events until the
// client disconnects. Watchers see bids, extensions, and resolution in the
// order they were committed.
func Watch(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ask_handler.Watch")
	defer span.End()

	askID := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*askrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	if _, err := repo.Get(ctx, askID); err != nil {
		return err
	}

	ctx, hub, err := ectoinject.GetContext[*events.Hub](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	sub := hub.Subscribe(askID)
	defer hub.Unsubscribe(askID, sub)

	metrics.WatchSubscriptions.Inc()
	defer metrics.WatchSubscriptions.Dec()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.EventType, data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
