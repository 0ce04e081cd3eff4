package slots

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gymbook/internal/model"
)

// ErrInvalidSlotFormat is returned when a slot label has no leading HH:MM token.
var ErrInvalidSlotFormat = errors.New("invalid slot format")

// Interval is a half-open [Start, End) range of offsets from midnight.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// Overlaps reports whether the two intervals share any instant.
func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i.Start, i.End, other.Start, other.End)
}

func (i Interval) String() string {
	return model.FormatClock(i.Start) + "-" + model.FormatClock(i.End)
}

// ParseStart extracts the start time from a slot label such as "14:30" or
// "14:30-15:30". Only the token before the first dash is significant.
func ParseStart(label string) (time.Duration, error) {
	trimmed := strings.TrimSpace(label)
	if idx := strings.Index(trimmed, "-"); idx > 0 {
		trimmed = strings.TrimSpace(trimmed[:idx])
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlotFormat, label)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidSlotFormat, label)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidSlotFormat, label)
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("%w: invalid second in %q", ErrInvalidSlotFormat, label)
		}
	}

	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second, nil
}

// BuildInterval returns [start, start+duration). Durations below one minute are
// clamped to one minute.
func BuildInterval(label string, durationMinutes int) (Interval, error) {
	if durationMinutes < 1 {
		durationMinutes = 1
	}
	start, err := ParseStart(label)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + time.Duration(durationMinutes)*time.Minute}, nil
}

// Overlaps is the half-open overlap test; touching endpoints do not overlap.
func Overlaps(startA, endA, startB, endB time.Duration) bool {
	return startA < endB && startB < endA
}
