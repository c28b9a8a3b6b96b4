package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Hour, Remaining(now, now.Add(time.Hour)))
	assert.Equal(t, -time.Minute, Remaining(now, now.Add(-time.Minute)))
	assert.Equal(t, time.Duration(0), Remaining(now, now))
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		end     time.Time
		expired bool
	}{
		{"window still open", now.Add(time.Second), false},
		{"exactly at the boundary", now, true},
		{"window lapsed", now.Add(-time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, IsExpired(now, tt.end))
		})
	}
}

func TestInFinalWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want bool
	}{
		{"59s remaining", now.Add(59 * time.Second), true},
		{"1s remaining", now.Add(time.Second), true},
		{"exactly 60s remaining", now.Add(60 * time.Second), false},
		{"expired", now.Add(-time.Second), false},
		{"boundary instant", now, false},
		{"hours remaining", now.Add(3 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InFinalWindow(now, tt.end))
		})
	}
}

func TestIsLastDay(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsLastDay(now, now.Add(23*time.Hour)))
	assert.False(t, IsLastDay(now, now.Add(25*time.Hour)))
	assert.False(t, IsLastDay(now, now.Add(-time.Hour)))
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	assert.Equal(t, start, fake.Now())

	fake.Advance(10 * time.Second)
	assert.Equal(t, start.Add(10*time.Second), fake.Now())

	fake.Set(start.Add(time.Hour))
	assert.Equal(t, start.Add(time.Hour), fake.Now())
}
