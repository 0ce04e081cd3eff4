package api

import (
	"net/http"
	"strings"

	"gymbook/internal/booking"
	"gymbook/internal/model"
)

// ServiceView is a catalog entry as exposed to members.
type ServiceView struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Description     string  `json:"description,omitempty"`
}

// GET /api/services
func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.deps.Bookings.ListServices(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]ServiceView, 0, len(services))
	for i := range services {
		svc := &services[i]
		out = append(out, ServiceView{
			ID:              svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.EffectiveDuration(),
			Price:           svc.Price,
			Description:     svc.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

// GET /api/coaches
func (s *HTTPServer) handleListCoaches(w http.ResponseWriter, r *http.Request) {
	coaches, err := s.deps.Bookings.ListCoaches(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coaches": coaches})
}

// handleAvailableCoaches lists coaches free at a slot.
// GET /api/coaches/available?date=YYYY-MM-DD&slot=HH:MM[&service_id=N]
func (s *HTTPServer) handleAvailableCoaches(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	serviceID, err := queryID(r, "service_id", false)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	slot := strings.TrimSpace(r.URL.Query().Get("slot"))

	coaches, err := s.deps.Bookings.AvailableCoaches(r.Context(), date, slot, serviceID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if coaches == nil {
		coaches = []booking.CoachSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    date.Format(model.DateLayout),
		"slot":    slot,
		"coaches": coaches,
	})
}
