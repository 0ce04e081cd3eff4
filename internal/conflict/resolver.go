package conflict

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gymbook/internal/model"
	"gymbook/internal/slots"
)

// Kind classifies why a candidate interval was rejected.
type Kind string

const (
	KindCoachBusy          Kind = "coach_busy"
	KindMemberDoubleBooked Kind = "member_double_booked"
	KindCoachNowBusy       Kind = "coach_now_busy"
)

// Existing is the slice of a stored booking needed for overlap checks.
type Existing struct {
	ID          int64
	TimeSlot    string
	ServiceName string
	Member      string
	Coach       string
}

// FromAppointment projects a stored appointment.
func FromAppointment(a *model.Appointment) Existing {
	return Existing{
		ID:          a.ID,
		TimeSlot:    a.TimeSlot,
		ServiceName: a.ServiceName,
		Member:      a.MemberKey(),
		Coach:       a.Coach,
	}
}

// Durations maps service names to their duration in minutes.
type Durations map[string]int

// For returns the duration of the named service, or the default for unknown names.
func (d Durations) For(serviceName string) int {
	if minutes, ok := d[strings.TrimSpace(serviceName)]; ok {
		return model.NormalizeDuration(minutes)
	}
	return model.DefaultServiceDuration
}

// DurationsFromServices builds a lookup from the service catalog.
func DurationsFromServices(services []model.Service) Durations {
	d := make(Durations, len(services))
	for _, s := range services {
		d[strings.TrimSpace(s.Name)] = s.EffectiveDuration()
	}
	return d
}

// Conflict describes the first stored booking colliding with a candidate.
type Conflict struct {
	Kind     Kind
	Booking  Existing
	Interval slots.Interval
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("%s: booking %d at %s", c.Kind, c.Booking.ID, c.Interval)
}

// Resolver checks candidate intervals against stored bookings.
type Resolver struct {
	logger zerolog.Logger
}

// NewResolver creates a resolver that logs stored labels it cannot parse.
func NewResolver(logger *zerolog.Logger) *Resolver {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "conflict").Logger()
	}
	return &Resolver{logger: l}
}

// Check returns the first existing booking whose interval overlaps candidate,
// tagged with kind, or nil. The caller pre-filters existing to the relevant
// coach or member on the candidate's date with non-rejected status.
func (r *Resolver) Check(candidate slots.Interval, existing []Existing, durations Durations, kind Kind) *Conflict {
	for _, e := range existing {
		iv, err := slots.BuildInterval(e.TimeSlot, durations.For(e.ServiceName))
		if err != nil {
			r.logger.Warn().Err(err).Int64("booking_id", e.ID).Str("slot", e.TimeSlot).Msg("skipping booking with unparseable slot")
			continue
		}
		if candidate.Overlaps(iv) {
			return &Conflict{Kind: kind, Booking: e, Interval: iv}
		}
	}
	return nil
}

// Free reports whether candidate overlaps none of existing.
func (r *Resolver) Free(candidate slots.Interval, existing []Existing, durations Durations) bool {
	return r.Check(candidate, existing, durations, KindCoachBusy) == nil
}
