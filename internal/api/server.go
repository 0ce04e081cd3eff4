// Package api exposes the booking engine over HTTP JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gymbook/internal/access"
	"gymbook/internal/booking"
	"gymbook/internal/metrics"
	"gymbook/internal/report"
	"gymbook/internal/usage"
)

// APIKeyHeader carries the admin key on admin routes.
const APIKeyHeader = "X-Api-Key"

const maxBodyBytes = 64 << 10

// Config holds HTTP server settings.
type Config struct {
	Port             int
	AdminAPIKey      string
	RequestTimeout   time.Duration
	SubmitRatePerMin float64
	SubmitBurst      int

	// TrustProxyHeaders keys anonymous submissions by X-Forwarded-For.
	TrustProxyHeaders bool
}

// Deps are the services the handlers call into.
type Deps struct {
	Bookings *booking.Service
	Usage    *usage.Service
	Access   *access.Service
	Tables   report.TableExporter
	// Pinger reports database readiness.
	Pinger interface {
		PingContext(ctx context.Context) error
	}
	Redis *redis.Client
}

// HTTPServer serves the public and admin API.
type HTTPServer struct {
	cfg     Config
	deps    Deps
	limiter *memberLimiter
	server  *http.Server
	logger  zerolog.Logger
}

// NewHTTPServer builds the router and middleware chain.
func NewHTTPServer(cfg Config, deps Deps, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "api").Logger()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	s := &HTTPServer{
		cfg:     cfg,
		deps:    deps,
		limiter: newMemberLimiter(cfg.SubmitRatePerMin, cfg.SubmitBurst),
		logger:  l,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/services", s.handleListServices)
	mux.HandleFunc("GET /api/slots", s.handleSlots)
	mux.HandleFunc("POST /api/bookings", s.handleSubmit)
	mux.HandleFunc("GET /api/members/appointments", s.handleMemberAppointments)
	mux.HandleFunc("GET /api/coaches", s.handleListCoaches)
	mux.HandleFunc("GET /api/coaches/available", s.handleAvailableCoaches)

	mux.Handle("GET /api/bookings", s.requireAPIKey(http.HandlerFunc(s.handleListBookings)))
	mux.Handle("POST /api/bookings/{id}/decision", s.requireAPIKey(http.HandlerFunc(s.handleDecide)))
	mux.Handle("GET /api/usage", s.requireAPIKey(http.HandlerFunc(s.handleUsage)))
	mux.Handle("GET /api/reports/usage.xlsx", s.requireAPIKey(http.HandlerFunc(s.handleUsageReport)))
	mux.Handle("GET /api/reports/tables.xlsx", s.requireAPIKey(http.HandlerFunc(s.handleTablesReport)))
	mux.Handle("GET /api/blocklist", s.requireAPIKey(http.HandlerFunc(s.handleListBlocked)))
	mux.Handle("POST /api/blocklist", s.requireAPIKey(http.HandlerFunc(s.handleBlock)))
	mux.Handle("DELETE /api/blocklist", s.requireAPIKey(http.HandlerFunc(s.handleUnblock)))

	handler := Chain(mux,
		withRequestID,
		WithTimeout(cfg.RequestTimeout),
		WithBodyLimit(maxBodyBytes),
		withLogging(s.logger),
	)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminAPIKey == "" || r.Header.Get(APIKeyHeader) != s.cfg.AdminAPIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true
	if s.deps.Pinger != nil {
		checks["database"] = "ok"
		if err := s.deps.Pinger.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			ready = false
		}
	}
	if s.deps.Redis != nil {
		checks["redis"] = "ok"
		if err := s.deps.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			ready = false
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ready": ready, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps engine errors to HTTP responses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *booking.ValidationError
		ce *booking.ConflictError
		se *booking.StorageError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &ce):
		metrics.IncBookingConflict(string(ce.Kind))
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      ce.Error(),
			"kind":       ce.Kind,
			"booking_id": ce.Booking.ID,
		})
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case access.IsAccessDenied(err):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &se):
		s.logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("storage failure")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		s.logger.Error().Err(err).Str("request_id", RequestIDFromContext(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
