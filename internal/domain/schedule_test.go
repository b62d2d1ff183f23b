package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

func TestNextRunAt(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		action domain.Action
		base   time.Time
		want   time.Time
	}{
		{
			name:   "no constraints runs at base",
			action: domain.Action{},
			base:   day(14, 0),
			want:   day(14, 0),
		},
		{
			name:   "delay is added to base",
			action: domain.Action{Delay: time.Hour},
			base:   day(14, 0),
			want:   day(15, 0),
		},
		{
			name:   "slot later the same day",
			action: domain.Action{ExecutionTime: "09:00"},
			base:   day(7, 15),
			want:   day(9, 0),
		},
		{
			name:   "slot already passed rolls to next day",
			action: domain.Action{ExecutionTime: "09:00"},
			base:   day(14, 0),
			want:   day(9, 0).AddDate(0, 0, 1),
		},
		{
			name:   "floor exactly on the slot is kept",
			action: domain.Action{ExecutionTime: "09:00"},
			base:   day(9, 0),
			want:   day(9, 0),
		},
		{
			name:   "delay sets the floor before snapping",
			action: domain.Action{Delay: 20 * time.Hour, ExecutionTime: "09:00"},
			base:   day(8, 0),
			want:   day(9, 0).AddDate(0, 0, 1),
		},
		{
			name:   "seconds past the slot roll over",
			action: domain.Action{ExecutionTime: "14:00"},
			base:   day(14, 0).Add(30 * time.Second),
			want:   day(14, 0).AddDate(0, 0, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.action.NextRunAt(tt.base, time.UTC)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNextRunAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	a := domain.Action{ExecutionTime: "09:00"}

	// 03:00 UTC is 08:00 in UTC+5, so the slot is one hour away.
	base := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	got, err := a.NextRunAt(base, loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(base.Add(time.Hour)), "got %s", got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestParseClock(t *testing.T) {
	h, m, err := domain.ParseClock("7:05")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 5, m)

	_, _, err = domain.ParseClock("12:60")
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}
