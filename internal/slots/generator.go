package slots

import (
	"context"
	"fmt"
	"time"

	"gymbook/internal/model"
)

// Reason explains an empty slot list to the UI.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonGymClosed             Reason = "gym_closed"
	ReasonNoRemainingSlotsToday Reason = "no_remaining_slots_today"
)

// Result is the ordered list of bookable start labels for a date.
type Result struct {
	Slots  []string `json:"slots"`
	Reason Reason   `json:"reason,omitempty"`
}

// Contains reports whether label is one of the generated slots.
func (r Result) Contains(label string) bool {
	for _, s := range r.Slots {
		if s == label {
			return true
		}
	}
	return false
}

// HoursSource provides stored opening hours keyed by weekday.
type HoursSource interface {
	ListOpeningHours(ctx context.Context) (map[time.Weekday]model.OpeningHours, error)
}

// Generator derives available start times from facility opening hours.
type Generator struct {
	hours HoursSource
}

// NewGenerator creates a new slot generator.
func NewGenerator(hours HoursSource) *Generator {
	return &Generator{hours: hours}
}

// GenerateSlots loads the hours for date's weekday and enumerates slots.
func (g *Generator) GenerateSlots(ctx context.Context, date time.Time, durationMinutes int, now time.Time) (Result, error) {
	stored, err := g.hours.ListOpeningHours(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list opening hours: %w", err)
	}
	return Generate(EffectiveHours(stored, date.Weekday()), date, durationMinutes, now), nil
}

// EffectiveHours returns the stored hours for day or the default schedule.
func EffectiveHours(stored map[time.Weekday]model.OpeningHours, day time.Weekday) model.OpeningHours {
	if h, ok := stored[day]; ok {
		return h
	}
	return model.DefaultOpeningHours(day)
}

// StepFor returns the slot granularity: 30 minutes for short sessions, else 60.
func StepFor(durationMinutes int) time.Duration {
	if durationMinutes <= 45 {
		return 30 * time.Minute
	}
	return 60 * time.Minute
}

// Generate enumerates start times for one day. It is pure: now is only used
// to drop elapsed slots when date falls on the same calendar day.
func Generate(hours model.OpeningHours, date time.Time, durationMinutes int, now time.Time) Result {
	durationMinutes = model.NormalizeDuration(durationMinutes)
	if !hours.IsOpen() {
		return Result{Slots: []string{}, Reason: ReasonGymClosed}
	}

	duration := time.Duration(durationMinutes) * time.Minute
	step := StepFor(durationMinutes)

	candidates := make([]time.Duration, 0)
	for current := hours.Open; current+duration <= hours.Close; current += step {
		candidates = append(candidates, current)
	}
	if len(candidates) == 0 {
		return Result{Slots: []string{}, Reason: ReasonGymClosed}
	}

	if sameDay(date, now) {
		nowOfDay := clockOf(now)
		remaining := candidates[:0]
		for _, c := range candidates {
			if c > nowOfDay {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == 0 {
			return Result{Slots: []string{}, Reason: ReasonNoRemainingSlotsToday}
		}
		candidates = remaining
	}

	labels := make([]string, len(candidates))
	for i, c := range candidates {
		labels[i] = model.FormatClock(c)
	}
	return Result{Slots: labels}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
