package slots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymbook/internal/model"
)

type stubHours struct {
	hours map[time.Weekday]model.OpeningHours
	err   error
}

func (s *stubHours) ListOpeningHours(ctx context.Context) (map[time.Weekday]model.OpeningHours, error) {
	return s.hours, s.err
}

// 2025-03-10 is a Monday.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)

func hours(open, close time.Duration) model.OpeningHours {
	return model.OpeningHours{Open: open, Close: close, HasHours: true}
}

func TestGenerateStepsAndBounds(t *testing.T) {
	earlier := monday.AddDate(0, 0, -3)

	tests := []struct {
		name     string
		hours    model.OpeningHours
		duration int
		first    string
		last     string
		count    int
	}{
		{"sixty minute service", hours(8*time.Hour, 22*time.Hour), 60, "08:00", "21:00", 14},
		{"thirty minute service", hours(8*time.Hour, 22*time.Hour), 30, "08:00", "21:30", 28},
		{"forty five uses half-hour step", hours(8*time.Hour, 10*time.Hour), 45, "08:00", "09:00", 3},
		{"ninety uses hourly step", hours(8*time.Hour, 12*time.Hour), 90, "08:00", "10:00", 3},
		{"zero duration treated as sixty", hours(8*time.Hour, 10*time.Hour), 0, "08:00", "09:00", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Generate(tt.hours, monday, tt.duration, earlier)
			require.Len(t, res.Slots, tt.count)
			assert.Equal(t, tt.first, res.Slots[0])
			assert.Equal(t, tt.last, res.Slots[len(res.Slots)-1])
			assert.Equal(t, ReasonNone, res.Reason)
			assert.IsIncreasing(t, res.Slots)
		})
	}
}

func TestGenerateClosed(t *testing.T) {
	earlier := monday.AddDate(0, 0, -1)

	cases := map[string]model.OpeningHours{
		"closed flag":       {IsClosed: true},
		"missing hours":     {},
		"close before open": hours(18*time.Hour, 9*time.Hour),
		"too short":         hours(9*time.Hour, 9*time.Hour+30*time.Minute),
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			res := Generate(h, monday, 60, earlier)
			assert.Empty(t, res.Slots)
			assert.NotNil(t, res.Slots)
			assert.Equal(t, ReasonGymClosed, res.Reason)
		})
	}
}

func TestGenerateDropsElapsedSlotsToday(t *testing.T) {
	now := monday.Add(14 * time.Hour)

	res := Generate(hours(8*time.Hour, 22*time.Hour), monday, 60, now)
	assert.Equal(t, []string{"15:00", "16:00", "17:00", "18:00", "19:00", "20:00", "21:00"}, res.Slots)
	assert.Equal(t, ReasonNone, res.Reason)

	late := monday.Add(21*time.Hour + 5*time.Minute)
	res = Generate(hours(8*time.Hour, 22*time.Hour), monday, 60, late)
	assert.Empty(t, res.Slots)
	assert.Equal(t, ReasonNoRemainingSlotsToday, res.Reason)
}

func TestGenerateFutureDateIgnoresClock(t *testing.T) {
	now := monday.Add(-time.Hour)
	res := Generate(hours(8*time.Hour, 10*time.Hour), monday, 60, now)
	assert.Equal(t, []string{"08:00", "09:00"}, res.Slots)
}

func TestGeneratorUsesDefaultsWhenDayMissing(t *testing.T) {
	gen := NewGenerator(&stubHours{hours: map[time.Weekday]model.OpeningHours{}})

	res, err := gen.GenerateSlots(context.Background(), monday, 60, monday.AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Len(t, res.Slots, 14)
	assert.Equal(t, "08:00", res.Slots[0])

	saturday := monday.AddDate(0, 0, 5)
	res, err = gen.GenerateSlots(context.Background(), saturday, 60, monday)
	require.NoError(t, err)
	assert.Equal(t, "09:00", res.Slots[0])
	assert.Equal(t, "19:00", res.Slots[len(res.Slots)-1])
}

func TestGeneratorStoredClosedDay(t *testing.T) {
	gen := NewGenerator(&stubHours{hours: map[time.Weekday]model.OpeningHours{
		time.Monday: {DayOfWeek: time.Monday, IsClosed: true},
	}})
	res, err := gen.GenerateSlots(context.Background(), monday, 60, monday.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, ReasonGymClosed, res.Reason)
	assert.False(t, res.Contains("08:00"))
}

func TestGeneratorPropagatesStoreError(t *testing.T) {
	gen := NewGenerator(&stubHours{err: errors.New("db down")})
	_, err := gen.GenerateSlots(context.Background(), monday, 60, monday)
	assert.Error(t, err)
}
