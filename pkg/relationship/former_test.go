package relationship

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type stubCodeSource struct {
	codes []string
	err   error
}

func (s *stubCodeSource) CodesForPair(ctx context.Context, partyA, partyB string) ([]string, error) {
	return s.codes, s.err
}

func TestFormer_Code(t *testing.T) {
	tests := []struct {
		name          string
		bidderName    string
		requesterName string
		existing      []string
		lookupErr     error
		expected      string
	}{
		{
			name:          "first match between pair",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			existing:      nil,
			expected:      "JDMS0001",
		},
		{
			name:          "second match increments sequence",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			existing:      []string{"JDMS0001"},
			expected:      "JDMS0002",
		},
		{
			name:          "reversed block order still counts",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			existing:      []string{"MSJD0003"},
			expected:      "JDMS0004",
		},
		{
			name:          "gaps resolve to highest plus one",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			existing:      []string{"JDMS0001", "JDMS0007", "JDMS0004"},
			expected:      "JDMS0008",
		},
		{
			name:          "single token name pads with filler",
			bidderName:    "Cher",
			requesterName: "Mary Smith",
			existing:      nil,
			expected:      "CXMS0001",
		},
		{
			name:          "lowercase names are uppercased",
			bidderName:    "john doe",
			requesterName: "mary smith",
			existing:      nil,
			expected:      "JDMS0001",
		},
		{
			name:          "other pairs codes are ignored",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			existing:      []string{"ABCD0009"},
			expected:      "JDMS0001",
		},
		{
			name:          "malformed suffix is skipped",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			existing:      []string{"JDMS01", "JDMSabcd", "JDMS0002"},
			expected:      "JDMS0003",
		},
		{
			name:          "lookup failure falls back to first sequence",
			bidderName:    "John Doe",
			requesterName: "Mary Smith",
			lookupErr:     errors.New("connection refused"),
			expected:      "JDMS0001",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
			former := NewFormer(&stubCodeSource{codes: test.existing, err: test.lookupErr}, logger)

			code := former.Code(context.Background(), test.bidderName, test.requesterName, "bidder-1", "requester-1")

			assert.Equal(t, test.expected, code)
		})
	}
}

func TestInitialsBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "two tokens", input: "John Doe", expected: "JD"},
		{name: "three tokens uses first two", input: "Mary Jane Smith", expected: "MJ"},
		{name: "single token", input: "Cher", expected: "CX"},
		{name: "empty name", input: "", expected: "XX"},
		{name: "extra whitespace", input: "  John   Doe  ", expected: "JD"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, initialsBlock(test.input))
		})
	}
}
