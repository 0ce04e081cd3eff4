package booking

import (
	"context"
	"time"

	"gymbook/internal/model"
)

// BookingFilter narrows ListBookings. Zero values are ignored.
type BookingFilter struct {
	Coach     string
	Member    string
	Date      time.Time
	From      time.Time
	Status    *model.Status
	StatusNot *model.Status
	Limit     int
}

// Reader is the read side of the store.
type Reader interface {
	ListBookings(ctx context.Context, filter BookingFilter) ([]model.Appointment, error)
	GetBooking(ctx context.Context, id int64) (*model.Appointment, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	ListCoaches(ctx context.Context) ([]model.Coach, error)
	ListCoachServiceLinks(ctx context.Context) ([]model.CoachServiceLink, error)
	ListOpeningHours(ctx context.Context) (map[time.Weekday]model.OpeningHours, error)
}

// Tx is a store transaction. Writes are only available inside one.
type Tx interface {
	Reader
	// InsertBooking returns ErrSlotTaken when the coach slot is held by a
	// non-rejected booking.
	InsertBooking(ctx context.Context, appt *model.Appointment) (int64, error)
	// UpdateBookingStatus applies the decision only if the row is still in
	// status from. It returns false when no row matched.
	UpdateBookingStatus(ctx context.Context, id int64, from, to model.Status, decidedAt time.Time, decidedBy string) (bool, error)
}

// Store runs fn inside a single write transaction; fn's error rolls it back.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

func statusPtr(s model.Status) *model.Status {
	return &s
}

// coachesWithServices attaches service ids from the link table.
func coachesWithServices(ctx context.Context, r Reader) ([]model.Coach, error) {
	coaches, err := r.ListCoaches(ctx)
	if err != nil {
		return nil, err
	}
	links, err := r.ListCoachServiceLinks(ctx)
	if err != nil {
		return nil, err
	}
	byCoach := make(map[int64][]int64, len(coaches))
	for _, l := range links {
		byCoach[l.CoachID] = append(byCoach[l.CoachID], l.ServiceID)
	}
	for i := range coaches {
		coaches[i].ServiceIDs = byCoach[coaches[i].ID]
	}
	return coaches, nil
}

func findService(services []model.Service, id int64) (*model.Service, bool) {
	for i := range services {
		if services[i].ID == id {
			return &services[i], true
		}
	}
	return nil, false
}

func findCoach(coaches []model.Coach, name string) (*model.Coach, bool) {
	for i := range coaches {
		if coaches[i].FullName == name {
			return &coaches[i], true
		}
	}
	return nil, false
}
