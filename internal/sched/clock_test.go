package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, int64(2), floorDiv(5, 2))
	assert.Equal(t, int64(-3), floorDiv(-5, 2))
	assert.Equal(t, int64(-1), floorDiv(-1, secondsPerDay))
	assert.Equal(t, int64(0), floorDiv(0, secondsPerDay))
}

func TestNormalizeRollover(t *testing.T) {
	assert.Equal(t, 4, normalizeRollover(4))
	assert.Equal(t, 23, normalizeRollover(-1))
	assert.Equal(t, 0, normalizeRollover(24))
}

func TestCreationDayBounds(t *testing.T) {
	crt := int64(1_000_000)

	today, cutoff := creationDayBounds(crt, time.Unix(crt+2*secondsPerDay+5, 0))
	assert.Equal(t, 2, today)
	assert.Equal(t, crt+3*secondsPerDay, cutoff)

	today, cutoff = creationDayBounds(crt, time.Unix(crt, 0))
	assert.Equal(t, 0, today)
	assert.Equal(t, crt+secondsPerDay, cutoff)
}

func TestRolloverDayBounds(t *testing.T) {
	crt := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		name   string
		now    time.Time
		today  int
		cutoff time.Time
	}{
		{
			name:   "before rollover counts as the previous day",
			now:    time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
			today:  0,
			cutoff: time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC),
		},
		{
			name:   "after rollover",
			now:    time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC),
			today:  1,
			cutoff: time.Date(2026, 3, 3, 4, 0, 0, 0, time.UTC),
		},
		{
			name:   "a week later",
			now:    time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC),
			today:  7,
			cutoff: time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today, cutoff := rolloverDayBounds(crt, tt.now, 4, time.UTC)
			assert.Equal(t, tt.today, today)
			assert.Equal(t, tt.cutoff.Unix(), cutoff)
		})
	}
}

func TestStartOfDay(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC).Unix(), startOfDay(now, 4, time.UTC))

	early := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC).Unix(), startOfDay(early, 4, time.UTC))
}
