// Package relationship generates the human-readable collaboration codes
// that identify a match between two parties.
package relationship

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/tracing"
)

// fillerInitial pads a name block when the name has fewer than two tokens.
const fillerInitial = 'X'

// CodeSource looks up the existing collaboration codes between two
// identities, in either party order.
type CodeSource interface {
	CodesForPair(ctx context.Context, partyA, partyB string) ([]string, error)
}

// Former builds collaboration codes: two 2-letter initial blocks (bidder
// first, then requester) followed by a 4-digit per-pair sequence, e.g. the
// first match between bidder "John Doe" and requester "Mary Smith" is
// JDMS0001 and their second is JDMS0002.
type Former struct {
	source CodeSource
	logger ectologger.Logger
}

// NewFormer creates a new code former
func NewFormer(source CodeSource, logger ectologger.Logger) *Former {
	return &Former{
		source: source,
		logger: logger,
	}
}

// Code returns the next collaboration code for the pair. A lookup failure
// falls back to sequence 0001 rather than blocking acceptance; the possible
// duplicate is logged as a defect to reconcile later.
func (f *Former) Code(ctx context.Context, bidderName, requesterName, bidderID, requesterID string) string {
	ctx, span := tracing.StartSpan(ctx, "relationship.Former.Code")
	defer span.End()

	bidderBlock := initialsBlock(bidderName)
	requesterBlock := initialsBlock(requesterName)

	seq := 1
	codes, err := f.source.CodesForPair(ctx, bidderID, requesterID)
	if err != nil {
		f.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"bidder_id":    bidderID,
			"requester_id": requesterID,
		}).Error("Collaboration code lookup failed, defaulting to sequence 0001; possible duplicate code to reconcile")
	} else {
		seq = highestSequence(codes, bidderBlock, requesterBlock) + 1
	}

	return fmt.Sprintf("%s%s%04d", bidderBlock, requesterBlock, seq)
}

// initialsBlock takes the first letter of the name's first two
// space-separated tokens, padding with the filler when the name is short.
func initialsBlock(name string) string {
	tokens := strings.Fields(name)

	block := [2]rune{fillerInitial, fillerInitial}
	for i := 0; i < len(tokens) && i < 2; i++ {
		for _, r := range tokens[i] {
			block[i] = unicode.ToUpper(r)
			break
		}
	}
	return string(block[0]) + string(block[1])
}

// highestSequence scans existing codes for the pair, matching either block
// order, and returns the highest 4-digit suffix found.
func highestSequence(codes []string, blockA, blockB string) int {
	forward := blockA + blockB
	reverse := blockB + blockA

	highest := 0
	for _, code := range codes {
		var rest string
		switch {
		case strings.HasPrefix(code, forward):
			rest = code[len(forward):]
		case strings.HasPrefix(code, reverse):
			rest = code[len(reverse):]
		default:
			continue
		}

		if len(rest) != 4 {
			continue
		}
		seq, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if seq > highest {
			highest = seq
		}
	}
	return highest
}
