package booking

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gymbook/internal/conflict"
	"gymbook/internal/events"
	"gymbook/internal/model"
	"gymbook/internal/slots"
)

// UpcomingLimit caps the upcoming list returned with member appointments.
const UpcomingLimit = 6

// Clock returns the current time.
type Clock func() time.Time

// Publisher receives lifecycle events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Gatekeeper authorizes members and deciders.
type Gatekeeper interface {
	CheckMember(ctx context.Context, email string) error
	CheckAdmin(ctx context.Context, identity string) error
}

// SubmitRequest is a member's booking request.
type SubmitRequest struct {
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Date      time.Time `json:"date"`
	TimeSlot  string    `json:"time_slot"`
	Coach     string    `json:"coach"`
	ServiceID int64     `json:"service_id"`
	Notes     string    `json:"notes"`
}

// CoachSummary is a coach with the names of the services they deliver.
type CoachSummary struct {
	ID            int64    `json:"id"`
	FullName      string   `json:"full_name"`
	ExpertiseTags string   `json:"expertise_tags,omitempty"`
	Bio           string   `json:"bio,omitempty"`
	Services      []string `json:"services"`
}

// MemberAppointments is a member's full history plus the next few bookings.
type MemberAppointments struct {
	Appointments []model.Appointment `json:"appointments"`
	Upcoming     []model.Appointment `json:"upcoming"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

// WithPublisher sets the event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithGatekeeper enables member blocklist and admin checks.
func WithGatekeeper(g Gatekeeper) Option {
	return func(s *Service) { s.access = g }
}

// Service implements slot queries, submission and decisions.
type Service struct {
	store    Store
	slots    *slots.Generator
	resolver *conflict.Resolver
	events   Publisher
	access   Gatekeeper
	now      Clock
	logger   zerolog.Logger
}

// NewService creates a booking service over store.
func NewService(store Store, logger *zerolog.Logger, opts ...Option) *Service {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "booking").Logger()
	}
	s := &Service{
		store:    store,
		slots:    slots.NewGenerator(store),
		resolver: conflict.NewResolver(logger),
		now:      time.Now,
		logger:   l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAvailableSlots lists start times for serviceID on date.
func (s *Service) GetAvailableSlots(ctx context.Context, date time.Time, serviceID int64) (slots.Result, error) {
	now := s.now()
	date = model.DateOnly(date)
	if date.Before(model.DateOnly(now)) {
		return slots.Result{}, &ValidationError{Field: "date", Message: "must not be in the past"}
	}

	services, err := s.store.ListServices(ctx)
	if err != nil {
		return slots.Result{}, storageErr("list services", err)
	}
	svc, ok := findService(services, serviceID)
	if !ok {
		return slots.Result{}, &ValidationError{Field: "service_id", Message: "unknown service"}
	}

	res, err := s.slots.GenerateSlots(ctx, date, svc.EffectiveDuration(), now)
	if err != nil {
		return slots.Result{}, storageErr("list opening hours", err)
	}
	return res, nil
}

// Submit validates req and stores it as a Pending request.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*model.Appointment, error) {
	now := s.now()
	appt := &model.Appointment{
		FullName: strings.TrimSpace(req.FullName),
		Email:    model.NormalizeEmail(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Date:     model.DateOnly(req.Date),
		TimeSlot: strings.TrimSpace(req.TimeSlot),
		Coach:    strings.TrimSpace(req.Coach),
		Notes:    strings.TrimSpace(req.Notes),
		Status:   model.StatusPending,
	}

	if req.Date.IsZero() {
		return nil, &ValidationError{Field: "date", Message: "is required"}
	}
	if appt.Date.Before(model.DateOnly(now)) {
		return nil, &ValidationError{Field: "date", Message: "must not be in the past"}
	}
	if s.access != nil {
		if err := s.access.CheckMember(ctx, appt.Email); err != nil {
			return nil, err
		}
	}

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		services, err := tx.ListServices(ctx)
		if err != nil {
			return storageErr("list services", err)
		}
		svc, ok := findService(services, req.ServiceID)
		if !ok {
			return &ValidationError{Field: "service_id", Message: "unknown service"}
		}
		appt.ServiceName = svc.Name
		duration := svc.EffectiveDuration()

		if err := appt.Validate(); err != nil {
			var fe *model.FieldError
			if errors.As(err, &fe) {
				return &ValidationError{Field: fe.Field, Message: fe.Message}
			}
			return err
		}

		coaches, err := coachesWithServices(ctx, tx)
		if err != nil {
			return storageErr("list coaches", err)
		}
		coach, ok := findCoach(coaches, appt.Coach)
		if !ok {
			return &ValidationError{Field: "coach", Message: "unknown coach"}
		}
		if !coach.Offers(svc.ID) {
			return &ValidationError{Field: "coach", Message: "coach does not offer this service"}
		}

		hours, err := tx.ListOpeningHours(ctx)
		if err != nil {
			return storageErr("list opening hours", err)
		}
		available := slots.Generate(slots.EffectiveHours(hours, appt.Date.Weekday()), appt.Date, duration, now)
		if !available.Contains(appt.TimeSlot) {
			return &ValidationError{Field: "time_slot", Message: "slot is not available"}
		}

		candidate, err := slots.BuildInterval(appt.TimeSlot, duration)
		if err != nil {
			return &ValidationError{Field: "time_slot", Message: err.Error()}
		}
		durations := conflict.DurationsFromServices(services)

		memberBookings, err := tx.ListBookings(ctx, BookingFilter{
			Member:    appt.Email,
			Date:      appt.Date,
			StatusNot: statusPtr(model.StatusRejected),
		})
		if err != nil {
			return storageErr("list member bookings", err)
		}
		if c := s.resolver.Check(candidate, toExisting(memberBookings, 0), durations, conflict.KindMemberDoubleBooked); c != nil {
			return &ConflictError{Kind: c.Kind, Booking: c.Booking}
		}

		coachBookings, err := tx.ListBookings(ctx, BookingFilter{
			Coach:     appt.Coach,
			Date:      appt.Date,
			StatusNot: statusPtr(model.StatusRejected),
		})
		if err != nil {
			return storageErr("list coach bookings", err)
		}
		if c := s.resolver.Check(candidate, toExisting(coachBookings, 0), durations, conflict.KindCoachBusy); c != nil {
			return &ConflictError{Kind: c.Kind, Booking: c.Booking}
		}

		appt.RequestedAt = now
		id, err := tx.InsertBooking(ctx, appt)
		if errors.Is(err, ErrSlotTaken) {
			return &ConflictError{
				Kind:    conflict.KindCoachBusy,
				Booking: conflict.Existing{TimeSlot: appt.TimeSlot, ServiceName: appt.ServiceName, Coach: appt.Coach},
			}
		}
		if err != nil {
			return storageErr("insert booking", err)
		}
		appt.ID = id
		return nil
	})
	if err != nil {
		s.logger.Info().Err(err).Str("coach", appt.Coach).Str("date", appt.DateString()).Str("slot", appt.TimeSlot).Msg("booking submission refused")
		return nil, storageErr("submit", err)
	}

	s.logger.Info().Int64("booking_id", appt.ID).Str("coach", appt.Coach).Str("date", appt.DateString()).Str("slot", appt.TimeSlot).Msg("booking submitted")
	s.publish(events.TypeBookingSubmitted, appt)
	return appt, nil
}

// Decide approves or rejects a Pending request. When the request was already
// decided it returns the stored record together with ErrAlreadyDecided.
func (s *Service) Decide(ctx context.Context, id int64, action Action, decider string) (*model.Appointment, error) {
	decider = strings.TrimSpace(decider)
	target := action.Target()
	if target == model.StatusPending {
		return nil, &ValidationError{Field: "action", Message: "unknown action"}
	}
	if s.access != nil {
		if err := s.access.CheckAdmin(ctx, decider); err != nil {
			return nil, err
		}
	}

	var appt *model.Appointment
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		appt, err = tx.GetBooking(ctx, id)
		if err != nil {
			return storageErr("get booking", err)
		}
		if !CanTransition(appt.Status, target) {
			return ErrAlreadyDecided
		}

		if action == ActionApprove {
			if err := s.recheckCoach(ctx, tx, appt); err != nil {
				return err
			}
		}

		now := s.now()
		updated, err := tx.UpdateBookingStatus(ctx, appt.ID, model.StatusPending, target, now, decider)
		if err != nil {
			return storageErr("update booking status", err)
		}
		if !updated {
			return ErrAlreadyDecided
		}
		appt.Status = target
		appt.DecidedAt = &now
		appt.DecidedBy = decider
		return nil
	})
	if errors.Is(err, ErrAlreadyDecided) {
		return appt, ErrAlreadyDecided
	}
	if err != nil {
		return nil, storageErr("decide", err)
	}

	s.logger.Info().Int64("booking_id", appt.ID).Str("status", appt.Status.String()).Str("decided_by", decider).Msg("booking decided")
	s.publish(events.TypeBookingDecided, appt)
	return appt, nil
}

func (s *Service) recheckCoach(ctx context.Context, tx Tx, appt *model.Appointment) error {
	services, err := tx.ListServices(ctx)
	if err != nil {
		return storageErr("list services", err)
	}
	durations := conflict.DurationsFromServices(services)

	candidate, err := slots.BuildInterval(appt.TimeSlot, durations.For(appt.ServiceName))
	if err != nil {
		return &ValidationError{Field: "time_slot", Message: err.Error()}
	}

	approved, err := tx.ListBookings(ctx, BookingFilter{
		Coach:  appt.Coach,
		Date:   appt.Date,
		Status: statusPtr(model.StatusApproved),
	})
	if err != nil {
		return storageErr("list approved bookings", err)
	}
	if c := s.resolver.Check(candidate, toExisting(approved, appt.ID), durations, conflict.KindCoachNowBusy); c != nil {
		return &ConflictError{Kind: c.Kind, Booking: c.Booking}
	}
	return nil
}

// ListByStatus returns requests in the given status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status model.Status) ([]model.Appointment, error) {
	list, err := s.store.ListBookings(ctx, BookingFilter{Status: statusPtr(status)})
	if err != nil {
		return nil, storageErr("list bookings", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].RequestedAt.Before(list[j].RequestedAt)
	})
	return list, nil
}

// ListMemberAppointments returns every request made under email ordered by
// date then slot, and the next UpcomingLimit of them from today on.
func (s *Service) ListMemberAppointments(ctx context.Context, email string) (*MemberAppointments, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "is required"}
	}

	list, err := s.store.ListBookings(ctx, BookingFilter{Member: email})
	if err != nil {
		return nil, storageErr("list member bookings", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].TimeSlot < list[j].TimeSlot
	})

	today := model.DateOnly(s.now())
	upcoming := make([]model.Appointment, 0, UpcomingLimit)
	for _, a := range list {
		if len(upcoming) == UpcomingLimit {
			break
		}
		if !a.Date.Before(today) {
			upcoming = append(upcoming, a)
		}
	}
	if list == nil {
		list = []model.Appointment{}
	}
	return &MemberAppointments{Appointments: list, Upcoming: upcoming}, nil
}

// ListServices returns the service catalog.
func (s *Service) ListServices(ctx context.Context) ([]model.Service, error) {
	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, storageErr("list services", err)
	}
	return services, nil
}

// ListCoaches returns the coach directory sorted by name.
func (s *Service) ListCoaches(ctx context.Context) ([]CoachSummary, error) {
	coaches, services, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return summarize(coaches, services), nil
}

// AvailableCoaches returns coaches with no Approved booking overlapping the
// slot on date. With a serviceID, only coaches offering it are returned and
// its duration sizes the interval.
func (s *Service) AvailableCoaches(ctx context.Context, date time.Time, slot string, serviceID int64) ([]CoachSummary, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return nil, &ValidationError{Field: "time_slot", Message: "is required"}
	}
	coaches, services, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	duration := model.DefaultServiceDuration
	if serviceID != 0 {
		svc, ok := findService(services, serviceID)
		if !ok {
			return nil, &ValidationError{Field: "service_id", Message: "unknown service"}
		}
		duration = svc.EffectiveDuration()
	}
	candidate, err := slots.BuildInterval(slot, duration)
	if err != nil {
		return nil, &ValidationError{Field: "time_slot", Message: err.Error()}
	}

	approved, err := s.store.ListBookings(ctx, BookingFilter{
		Date:   model.DateOnly(date),
		Status: statusPtr(model.StatusApproved),
	})
	if err != nil {
		return nil, storageErr("list approved bookings", err)
	}
	byCoach := make(map[string][]conflict.Existing)
	for i := range approved {
		byCoach[approved[i].Coach] = append(byCoach[approved[i].Coach], conflict.FromAppointment(&approved[i]))
	}

	durations := conflict.DurationsFromServices(services)
	free := make([]model.Coach, 0, len(coaches))
	for _, c := range coaches {
		if serviceID != 0 && !c.Offers(serviceID) {
			continue
		}
		if s.resolver.Free(candidate, byCoach[c.FullName], durations) {
			free = append(free, c)
		}
	}
	return summarize(free, services), nil
}

func (s *Service) catalog(ctx context.Context) ([]model.Coach, []model.Service, error) {
	coaches, err := coachesWithServices(ctx, s.store)
	if err != nil {
		return nil, nil, storageErr("list coaches", err)
	}
	services, err := s.store.ListServices(ctx)
	if err != nil {
		return nil, nil, storageErr("list services", err)
	}
	return coaches, services, nil
}

func summarize(coaches []model.Coach, services []model.Service) []CoachSummary {
	names := make(map[int64]string, len(services))
	for _, svc := range services {
		names[svc.ID] = svc.Name
	}
	out := make([]CoachSummary, 0, len(coaches))
	for _, c := range coaches {
		svcNames := make([]string, 0, len(c.ServiceIDs))
		for _, id := range c.ServiceIDs {
			if n, ok := names[id]; ok {
				svcNames = append(svcNames, n)
			}
		}
		sort.Strings(svcNames)
		out = append(out, CoachSummary{
			ID:            c.ID,
			FullName:      c.FullName,
			ExpertiseTags: c.ExpertiseTags,
			Bio:           c.Bio,
			Services:      svcNames,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}

func toExisting(list []model.Appointment, skipID int64) []conflict.Existing {
	out := make([]conflict.Existing, 0, len(list))
	for i := range list {
		if skipID != 0 && list[i].ID == skipID {
			continue
		}
		out = append(out, conflict.FromAppointment(&list[i]))
	}
	return out
}

func (s *Service) publish(eventType string, appt *model.Appointment) {
	if s.events == nil {
		return
	}
	payload := events.BookingPayload{
		ID:          appt.ID,
		Status:      appt.Status.String(),
		Coach:       appt.Coach,
		ServiceName: appt.ServiceName,
		Date:        appt.DateString(),
		Member:      appt.Email,
		DecidedBy:   appt.DecidedBy,
		At:          s.now(),
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
