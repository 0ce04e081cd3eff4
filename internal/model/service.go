package model

import "time"

// DefaultServiceDuration is used when a service has no positive duration.
const DefaultServiceDuration = 60

// Service is a bookable offering such as a personal training session.
type Service struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           float64   `json:"price"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EffectiveDuration returns the duration in minutes, falling back to 60.
func (s *Service) EffectiveDuration() int {
	return NormalizeDuration(s.DurationMinutes)
}

// NormalizeDuration maps non-positive durations to DefaultServiceDuration.
func NormalizeDuration(minutes int) int {
	if minutes <= 0 {
		return DefaultServiceDuration
	}
	return minutes
}
