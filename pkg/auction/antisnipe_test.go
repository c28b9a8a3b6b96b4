package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtender_Extend(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	extender := NewExtender()

	tests := []struct {
		name         string
		now          time.Time
		end          time.Time
		expectedEnd  time.Time
		expectExtend bool
	}{
		{
			name:         "bid well before the closing window does not extend",
			now:          base,
			end:          base.Add(10 * time.Minute),
			expectedEnd:  base.Add(10 * time.Minute),
			expectExtend: false,
		},
		{
			name:         "bid with exactly the window remaining does not extend",
			now:          base,
			end:          base.Add(60 * time.Second),
			expectedEnd:  base.Add(60 * time.Second),
			expectExtend: false,
		},
		{
			name:         "bid inside the closing window extends from the previous end",
			now:          base,
			end:          base.Add(45 * time.Second),
			expectedEnd:  base.Add(45 * time.Second).Add(60 * time.Second),
			expectExtend: true,
		},
		{
			name:         "bid one second before the end extends",
			now:          base,
			end:          base.Add(time.Second),
			expectedEnd:  base.Add(time.Second).Add(60 * time.Second),
			expectExtend: true,
		},
		{
			name:         "bid at the boundary instant does not extend",
			now:          base,
			end:          base,
			expectedEnd:  base,
			expectExtend: false,
		},
		{
			name:         "bid after the end does not extend",
			now:          base,
			end:          base.Add(-time.Second),
			expectedEnd:  base.Add(-time.Second),
			expectExtend: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			newEnd, extended := extender.Extend(test.now, test.end)

			assert.Equal(t, test.expectExtend, extended)
			assert.True(t, test.expectedEnd.Equal(newEnd), "expected %s, got %s", test.expectedEnd, newEnd)
		})
	}
}

func TestExtender_Extend_Stacks(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	extender := NewExtender()

	// First bid with 50s remaining pushes the end to +110s.
	end := base.Add(50 * time.Second)
	end, extended := extender.Extend(base, end)
	assert.True(t, extended)
	assert.True(t, base.Add(110*time.Second).Equal(end))

	// A second bid 55s later lands inside the new window and extends from
	// the already-extended end, not from its arrival time.
	now := base.Add(55 * time.Second)
	end, extended = extender.Extend(now, end)
	assert.True(t, extended)
	assert.True(t, base.Add(170*time.Second).Equal(end))
}
