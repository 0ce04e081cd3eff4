package model

import (
	"fmt"
	"time"
)

// OpeningHours describes the facility schedule for one weekday.
// Open and Close are offsets from midnight; Close is exclusive.
type OpeningHours struct {
	DayOfWeek time.Weekday  `json:"day_of_week"`
	Open      time.Duration `json:"open"`
	Close     time.Duration `json:"close"`
	IsClosed  bool          `json:"is_closed"`
	HasHours  bool          `json:"has_hours"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DefaultOpeningHours is the schedule used when nothing is stored for a day:
// weekdays 08:00-22:00, weekends 09:00-20:00.
func DefaultOpeningHours(day time.Weekday) OpeningHours {
	if day == time.Saturday || day == time.Sunday {
		return OpeningHours{DayOfWeek: day, Open: 9 * time.Hour, Close: 20 * time.Hour, HasHours: true}
	}
	return OpeningHours{DayOfWeek: day, Open: 8 * time.Hour, Close: 22 * time.Hour, HasHours: true}
}

// IsOpen reports whether the day has a usable [Open, Close) window.
func (h OpeningHours) IsOpen() bool {
	return !h.IsClosed && h.HasHours && h.Close > h.Open
}

// FormatClock renders an offset from midnight as "HH:MM".
func FormatClock(d time.Duration) string {
	d = d.Truncate(time.Minute)
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
