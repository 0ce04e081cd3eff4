package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		label string
		want  time.Duration
	}{
		{"09:00", 9 * time.Hour},
		{"9:30", 9*time.Hour + 30*time.Minute},
		{" 14:30 ", 14*time.Hour + 30*time.Minute},
		{"14:30-15:30", 14*time.Hour + 30*time.Minute},
		{"10:00:30", 10*time.Hour + 30*time.Second},
		{"00:00", 0},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseStart(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStartInvalid(t *testing.T) {
	for _, label := range []string{"", "abc", "25:00", "10:60", "10", "-10:00", "10:5", "1:2:3:4"} {
		t.Run(label, func(t *testing.T) {
			_, err := ParseStart(label)
			assert.ErrorIs(t, err, ErrInvalidSlotFormat)
		})
	}
}

func TestBuildInterval(t *testing.T) {
	iv, err := BuildInterval("10:00", 45)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Hour, iv.Start)
	assert.Equal(t, 10*time.Hour+45*time.Minute, iv.End)
	assert.Equal(t, "10:00-10:45", iv.String())

	clamped, err := BuildInterval("10:00", 0)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, clamped.End-clamped.Start)

	_, err = BuildInterval("later", 30)
	assert.ErrorIs(t, err, ErrInvalidSlotFormat)
}

func TestOverlaps(t *testing.T) {
	h := time.Hour
	tests := []struct {
		name       string
		a1, a2     time.Duration
		b1, b2     time.Duration
		overlapped bool
	}{
		{"identical", 10 * h, 11 * h, 10 * h, 11 * h, true},
		{"partial", 10 * h, 11 * h, 10*h + 30*time.Minute, 11*h + 30*time.Minute, true},
		{"contained", 10 * h, 12 * h, 10*h + 30*time.Minute, 11 * h, true},
		{"touching end", 10 * h, 11 * h, 11 * h, 12 * h, false},
		{"touching start", 11 * h, 12 * h, 10 * h, 11 * h, false},
		{"disjoint", 8 * h, 9 * h, 10 * h, 11 * h, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlapped, Overlaps(tt.a1, tt.a2, tt.b1, tt.b2))
			assert.Equal(t, tt.overlapped, Overlaps(tt.b1, tt.b2, tt.a1, tt.a2), "overlap must be symmetric")
		})
	}
}
