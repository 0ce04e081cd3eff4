package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gymbook/internal/booking"
	"gymbook/internal/metrics"
	"gymbook/internal/model"
	"gymbook/internal/slots"
)

// SlotsResponse is the response for GET /api/slots.
type SlotsResponse struct {
	Date      string       `json:"date"`
	ServiceID int64        `json:"service_id"`
	Slots     []string     `json:"slots"`
	Reason    slots.Reason `json:"reason,omitempty"`
}

// SubmitBody is the request body for POST /api/bookings.
type SubmitBody struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Date      string `json:"date"` // Format: YYYY-MM-DD
	TimeSlot  string `json:"time_slot"`
	Coach     string `json:"coach"`
	ServiceID int64  `json:"service_id"`
	Notes     string `json:"notes"`
}

// DecisionBody is the request body for POST /api/bookings/{id}/decision.
type DecisionBody struct {
	Action    string `json:"action"` // approve | reject
	DecidedBy string `json:"decided_by"`
}

// DecisionResponse carries the stored record after a decision.
type DecisionResponse struct {
	Booking        *model.Appointment `json:"booking"`
	AlreadyDecided bool               `json:"already_decided"`
}

// handleSlots lists start times for a service on a date.
// GET /api/slots?date=YYYY-MM-DD&service_id=N
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	serviceID, err := queryID(r, "service_id", true)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	res, err := s.deps.Bookings.GetAvailableSlots(r.Context(), date, serviceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if res.Slots == nil {
		res.Slots = []string{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{
		Date:      date.Format(model.DateLayout),
		ServiceID: serviceID,
		Slots:     res.Slots,
		Reason:    res.Reason,
	})
}

// handleSubmit stores a Pending request.
// POST /api/bookings
func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body SubmitBody
	if !decodeBody(w, r, &body) {
		return
	}

	key := model.NormalizeEmail(body.Email)
	if key == "" {
		key = clientKey(r, s.cfg.TrustProxyHeaders)
	}
	if !s.limiter.Allow(key) {
		metrics.IncBookingSubmitted("rate_limited")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	date, err := model.ParseDate(body.Date)
	if err != nil {
		metrics.IncBookingSubmitted("invalid")
		s.writeServiceError(w, r, &booking.ValidationError{Field: "date", Message: "expected YYYY-MM-DD"})
		return
	}

	appt, err := s.deps.Bookings.Submit(r.Context(), booking.SubmitRequest{
		FullName:  body.FullName,
		Email:     body.Email,
		Phone:     body.Phone,
		Date:      date,
		TimeSlot:  body.TimeSlot,
		Coach:     body.Coach,
		ServiceID: body.ServiceID,
		Notes:     body.Notes,
	})
	if err != nil {
		metrics.IncBookingSubmitted(submitOutcome(err))
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func submitOutcome(err error) string {
	switch {
	case booking.IsValidation(err):
		return "invalid"
	case booking.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}

// handleListBookings lists requests by status, Pending by default.
// GET /api/bookings?status=Pending
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	status := model.StatusPending
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		parsed, err := model.ParseStatus(v)
		if err != nil {
			s.writeServiceError(w, r, &booking.ValidationError{Field: "status", Message: err.Error()})
			return
		}
		status = parsed
	}

	list, err := s.deps.Bookings.ListByStatus(r.Context(), status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": list})
}

// handleDecide approves or rejects a Pending request.
// POST /api/bookings/{id}/decision
func (s *HTTPServer) handleDecide(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}
	var body DecisionBody
	if !decodeBody(w, r, &body) {
		return
	}
	action, err := booking.ParseAction(body.Action)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	appt, err := s.deps.Bookings.Decide(r.Context(), id, action, body.DecidedBy)
	if errors.Is(err, booking.ErrAlreadyDecided) {
		writeJSON(w, http.StatusOK, DecisionResponse{Booking: appt, AlreadyDecided: true})
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DecisionResponse{Booking: appt})
}

// handleMemberAppointments lists a member's history and upcoming bookings.
// GET /api/members/appointments?email=...
func (s *HTTPServer) handleMemberAppointments(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Bookings.ListMemberAppointments(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func queryID(r *http.Request, name string, required bool) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		if required {
			return 0, &booking.ValidationError{Field: name, Message: "is required"}
		}
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &booking.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if strings.TrimSpace(v) == "" {
		return time.Time{}, &booking.ValidationError{Field: name, Message: "is required"}
	}
	t, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, &booking.ValidationError{Field: name, Message: "expected YYYY-MM-DD"}
	}
	return t, nil
}
