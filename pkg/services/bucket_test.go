package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

func TestNewBucketer_RejectsUnknownGranularity(t *testing.T) {
	_, err := NewBucketer("month", time.UTC)
	assert.Error(t, err)
}

func TestBucketer_FloorDay(t *testing.T) {
	loc := seoul(t)
	b, err := NewBucketer("day", loc)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			"midday stays same day",
			time.Date(2025, 3, 14, 15, 4, 5, 0, loc),
			time.Date(2025, 3, 14, 0, 0, 0, 0, loc),
		},
		{
			"local midnight is its own boundary",
			time.Date(2025, 3, 14, 0, 0, 0, 0, loc),
			time.Date(2025, 3, 14, 0, 0, 0, 0, loc),
		},
		{
			"utc evening is already next day in seoul",
			time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC),
			time.Date(2025, 3, 15, 0, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(b.Floor(tt.in)), "got %v", b.Floor(tt.in))
		})
	}
}

func TestBucketer_FloorWeek(t *testing.T) {
	loc := seoul(t)
	b, err := NewBucketer("week", loc)
	require.NoError(t, err)

	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)

	// Every day of that week floors to its Monday, Sunday included.
	for d := 0; d < 7; d++ {
		in := time.Date(2025, 3, 10+d, 13, 0, 0, 0, loc)
		assert.True(t, monday.Equal(b.Floor(in)), "day offset %d floored to %v", d, b.Floor(in))
	}
}

func TestBucketer_Next(t *testing.T) {
	loc := seoul(t)

	day, err := NewBucketer("day", loc)
	require.NoError(t, err)
	start := time.Date(2025, 3, 14, 0, 0, 0, 0, loc)
	assert.True(t, time.Date(2025, 3, 15, 0, 0, 0, 0, loc).Equal(day.Next(start)))

	week, err := NewBucketer("week", loc)
	require.NoError(t, err)
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	assert.True(t, time.Date(2025, 3, 17, 0, 0, 0, 0, loc).Equal(week.Next(monday)))
}
