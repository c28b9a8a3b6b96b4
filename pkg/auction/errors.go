package auction

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Machine-readable failure codes carried in the error Meta so clients can
// react without parsing messages.
const (
	CodeAskNotFound     = "ask_not_found"
	CodeBidNotFound     = "bid_not_found"
	CodeAuctionClosed   = "auction_closed"
	CodeAlreadyResolved = "already_resolved"
	CodeNotOwner        = "not_owner"
	CodeBidNotLowest    = "bid_not_lowest"
)

func newCodedError(status int, code string, message string) error {
	err := httperror.NewHTTPError(status, message)
	herr := httperror.ToHTTPError(err)
	herr.Meta = map[string]any{"code": code}
	return herr
}

// ErrAskNotFound: the referenced ask does not exist.
func ErrAskNotFound(askID string) error {
	return newCodedError(http.StatusNotFound, CodeAskNotFound, fmt.Sprintf("ask %s not found", askID))
}

// ErrBidNotFound: the referenced bid does not exist on the ask.
func ErrBidNotFound(bidID string) error {
	return newCodedError(http.StatusNotFound, CodeBidNotFound, fmt.Sprintf("bid %s not found", bidID))
}

// ErrAuctionClosed: a bid landed on an ask that is expired or no longer
// active. Clients should re-fetch state rather than retry.
func ErrAuctionClosed(askID string) error {
	return newCodedError(http.StatusConflict, CodeAuctionClosed, fmt.Sprintf("auction for ask %s is closed", askID))
}

// ErrAlreadyResolved: the ask already has an accepted bid. Makes acceptance
// retries safe.
func ErrAlreadyResolved(askID string) error {
	return newCodedError(http.StatusConflict, CodeAlreadyResolved, fmt.Sprintf("ask %s is already resolved", askID))
}

// ErrNotOwner: the actor is not the ask's owner.
func ErrNotOwner(askID string) error {
	return newCodedError(http.StatusForbidden, CodeNotOwner, fmt.Sprintf("only the owner of ask %s may perform this action", askID))
}

// ErrBidNotLowest: the must-beat-lowest rule is enabled and the bid does not
// undercut the current lowest pending bid.
func ErrBidNotLowest(askID string, lowest float64) error {
	return newCodedError(http.StatusUnprocessableEntity, CodeBidNotLowest, fmt.Sprintf("bid on ask %s must be lower than the current lowest bid of %.2f", askID, lowest))
}

// askNotFound maps a repository 404 onto the coded AskNotFound error so every
// engine surfaces the same code for a missing ask. Other errors pass through.
func askNotFound(err error, askID string) error {
	if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
		return ErrAskNotFound(askID)
	}
	return err
}

// ErrorCode extracts the machine-readable code from an engine error, or ""
// for anything else.
func ErrorCode(err error) string {
	if err == nil || !httperror.IsHTTPError(err) {
		return ""
	}
	herr := httperror.ToHTTPError(err)
	code, _ := herr.Meta["code"].(string)
	return code
}

// IsAuctionClosed reports whether err is an AuctionClosed failure.
func IsAuctionClosed(err error) bool { return ErrorCode(err) == CodeAuctionClosed }

// IsAlreadyResolved reports whether err is an AlreadyResolved failure.
func IsAlreadyResolved(err error) bool { return ErrorCode(err) == CodeAlreadyResolved }

// IsNotOwner reports whether err is a NotOwner failure.
func IsNotOwner(err error) bool { return ErrorCode(err) == CodeNotOwner }
