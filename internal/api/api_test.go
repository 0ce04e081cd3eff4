package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymbook/internal/access"
	"gymbook/internal/booking"
	"gymbook/internal/config"
	"gymbook/internal/db"
	"gymbook/internal/report"
	"gymbook/internal/usage"
)

const (
	testAPIKey = "valid-key"
	testAdmin  = "admin@gym.test"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

func newTestServer(t *testing.T, cfg Config) *HTTPServer {
	t.Helper()
	ctx := context.Background()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SyncFacilityFromConfig(ctx, &config.FacilityConfig{
		Services: []config.ServiceConfig{
			{ID: 1, Name: "Personal Training", DurationMinutes: 60, Price: 40},
			{ID: 2, Name: "Stretch", DurationMinutes: 30},
		},
		Coaches: []config.CoachConfig{
			{ID: 10, FullName: "Ada", Services: []int64{1, 2}},
			{ID: 11, FullName: "Bo", Services: []int64{2}},
		},
		OpeningHours: []config.HoursConfig{{Day: 7, Closed: true}},
		Admins:       []config.AdminConfig{{Identity: testAdmin}},
	}))

	logger := zerolog.Nop()
	gate := access.NewService(store, store, logger)
	bookings := booking.NewService(store, &logger,
		booking.WithClock(func() time.Time { return testNow }),
		booking.WithGatekeeper(gate),
	)
	usageSvc := usage.NewService(store, &logger)
	usageSvc.SetClock(func() time.Time { return testNow })

	if cfg.AdminAPIKey == "" {
		cfg.AdminAPIKey = testAPIKey
	}
	return NewHTTPServer(cfg, Deps{
		Bookings: bookings,
		Usage:    usageSvc,
		Access:   gate,
		Tables:   store,
		Pinger:   store,
	}, &logger)
}

func do(t *testing.T, srv *HTTPServer, method, target string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if admin {
		req.Header.Set(APIKeyHeader, testAPIKey)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func submitBody(email, coach, slot string, serviceID int64) SubmitBody {
	return SubmitBody{
		FullName:  "Member " + email,
		Email:     email,
		Date:      "2025-03-12",
		TimeSlot:  slot,
		Coach:     coach,
		ServiceID: serviceID,
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	rec = do(t, srv, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["ready"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}

func TestHandleSlots(t *testing.T) {
	srv := newTestServer(t, Config{})

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantField  string
	}{
		{"missing date", "/api/slots?service_id=1", http.StatusBadRequest, "date"},
		{"bad date", "/api/slots?date=12-03-2025&service_id=1", http.StatusBadRequest, "date"},
		{"missing service", "/api/slots?date=2025-03-12", http.StatusBadRequest, "service_id"},
		{"unknown service", "/api/slots?date=2025-03-12&service_id=99", http.StatusBadRequest, "service_id"},
		{"past date", "/api/slots?date=2025-03-01&service_id=1", http.StatusBadRequest, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.target, nil, false)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantField, decode[ErrorResponse](t, rec).Field)
		})
	}

	rec := do(t, srv, http.MethodGet, "/api/slots?date=2025-03-12&service_id=1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[SlotsResponse](t, rec)
	assert.Len(t, res.Slots, 14)
	assert.Equal(t, "08:00", res.Slots[0])
	assert.Equal(t, "21:00", res.Slots[13])
	assert.Empty(t, res.Reason)

	// Sunday is configured closed.
	rec = do(t, srv, http.MethodGet, "/api/slots?date=2025-03-16&service_id=1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[SlotsResponse](t, rec)
	assert.Empty(t, res.Slots)
	assert.Equal(t, "gym_closed", string(res.Reason))
}

func TestSubmitAndConflict(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Ada", "10:00", 1), false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "Pending", created["status"])

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("b@x.test", "Ada", "10:30", 2), false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "coach_busy", decode[ErrorResponse](t, rec).Kind)

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Bo", "10:30", 2), false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "member_double_booked", decode[ErrorResponse](t, rec).Kind)
}

func TestSubmitValidation(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodPost, "/api/bookings", map[string]any{"unknown": 1}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decode[ErrorResponse](t, rec).Error)

	body := submitBody("a@x.test", "Ada", "10:00", 1)
	body.Date = "2025/03/12"
	rec = do(t, srv, http.MethodPost, "/api/bookings", body, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date", decode[ErrorResponse](t, rec).Field)

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Ada", "10:15", 1), false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "time_slot", decode[ErrorResponse](t, rec).Field)
}

func TestSubmitRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{SubmitRatePerMin: 1, SubmitBurst: 1})

	rec := do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Ada", "10:00", 1), false)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("A@x.test", "Bo", "12:00", 2), false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("c@x.test", "Bo", "12:00", 2), false)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	srv := newTestServer(t, Config{})
	for _, target := range []string{"/api/bookings", "/api/usage", "/api/reports/usage.xlsx", "/api/blocklist"} {
		rec := do(t, srv, http.MethodGet, target, nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestDecide(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Ada", "10:00", 1), false)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := int64(decode[map[string]any](t, rec)["id"].(float64))
	target := "/api/bookings/" + strconv.FormatInt(id, 10) + "/decision"

	rec = do(t, srv, http.MethodPost, target, DecisionBody{Action: "approve", DecidedBy: "stranger"}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, target, DecisionBody{Action: "maybe", DecidedBy: testAdmin}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, target, DecisionBody{Action: "approve", DecidedBy: testAdmin}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[DecisionResponse](t, rec)
	assert.False(t, res.AlreadyDecided)
	assert.Equal(t, "Approved", res.Booking.Status.String())

	rec = do(t, srv, http.MethodPost, target, DecisionBody{Action: "reject", DecidedBy: testAdmin}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[DecisionResponse](t, rec)
	assert.True(t, res.AlreadyDecided)
	assert.Equal(t, "Approved", res.Booking.Status.String())

	rec = do(t, srv, http.MethodPost, "/api/bookings/999/decision", DecisionBody{Action: "approve", DecidedBy: testAdmin}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/bookings/abc/decision", DecisionBody{Action: "approve", DecidedBy: testAdmin}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListBookings(t *testing.T) {
	srv := newTestServer(t, Config{})
	do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Ada", "10:00", 1), false)
	do(t, srv, http.MethodPost, "/api/bookings", submitBody("b@x.test", "Bo", "12:00", 2), false)

	rec := do(t, srv, http.MethodGet, "/api/bookings", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decode[map[string][]json.RawMessage](t, rec)
	assert.Len(t, pending["bookings"], 2)

	rec = do(t, srv, http.MethodGet, "/api/bookings?status=Approved", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decode[map[string][]json.RawMessage](t, rec)
	assert.Empty(t, approved["bookings"])

	rec = do(t, srv, http.MethodGet, "/api/bookings?status=Lost", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberAppointments(t *testing.T) {
	srv := newTestServer(t, Config{})
	do(t, srv, http.MethodPost, "/api/bookings", submitBody("a@x.test", "Ada", "10:00", 1), false)

	rec := do(t, srv, http.MethodGet, "/api/members/appointments", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/members/appointments?email=A@X.test", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[booking.MemberAppointments](t, rec)
	assert.Len(t, res.Appointments, 1)
	assert.Len(t, res.Upcoming, 1)
}

func TestCatalogRoutes(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodGet, "/api/services", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode[map[string][]ServiceView](t, rec)["services"]
	require.Len(t, services, 2)
	assert.Equal(t, "Personal Training", services[0].Name)
	assert.Equal(t, 60, services[0].DurationMinutes)

	rec = do(t, srv, http.MethodGet, "/api/coaches", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	coaches := decode[map[string][]booking.CoachSummary](t, rec)["coaches"]
	require.Len(t, coaches, 2)
	assert.Equal(t, "Ada", coaches[0].FullName)
	assert.Equal(t, []string{"Personal Training", "Stretch"}, coaches[0].Services)

	rec = do(t, srv, http.MethodGet, "/api/coaches/available?date=2025-03-12&slot=10:00&service_id=1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	available := decode[map[string]json.RawMessage](t, rec)
	var list []booking.CoachSummary
	require.NoError(t, json.Unmarshal(available["coaches"], &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ada", list[0].FullName)

	rec = do(t, srv, http.MethodGet, "/api/coaches/available?date=2025-03-12", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageAndReports(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodGet, "/api/usage", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[usage.Report](t, rec)
	assert.Equal(t, "2025-03-10", rep.Today)
	assert.Len(t, rep.Weekly.ByService.Labels, 7)

	rec = do(t, srv, http.MethodGet, "/api/reports/usage.xlsx", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "usage_")
	assert.NotZero(t, rec.Body.Len())

	rec = do(t, srv, http.MethodGet, "/api/reports/tables.xlsx", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, rec.Body.Len())
}

func TestBlocklist(t *testing.T) {
	srv := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodPost, "/api/blocklist", BlockBody{Email: "spam@x.test", BlockedBy: "stranger"}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/blocklist", BlockBody{Email: " ", BlockedBy: testAdmin}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/blocklist", BlockBody{Email: "Spam@x.test", Reason: "no-shows", BlockedBy: testAdmin}, true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("spam@x.test", "Ada", "10:00", 1), false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/blocklist", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	blocked := decode[map[string][]access.BlockedMember](t, rec)["blocked"]
	require.Len(t, blocked, 1)
	assert.Equal(t, "spam@x.test", blocked[0].Email)
	assert.Equal(t, "no-shows", blocked[0].Reason)

	rec = do(t, srv, http.MethodDelete, "/api/blocklist?email=spam@x.test&by="+testAdmin, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/bookings", submitBody("spam@x.test", "Ada", "10:00", 1), false)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMemberLimiter(t *testing.T) {
	var nilLimiter *memberLimiter
	assert.True(t, nilLimiter.Allow("anyone"))
	assert.Nil(t, newMemberLimiter(0, 5))

	l := newMemberLimiter(60, 2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientKey(req, false))
	assert.Equal(t, "10.0.0.1", clientKey(req, true))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "10.0.0.1", clientKey(req, false))
	assert.Equal(t, "203.0.113.9", clientKey(req, true))
}

func TestAnonymousSubmitIgnoresForwardedFor(t *testing.T) {
	srv := newTestServer(t, Config{SubmitRatePerMin: 1, SubmitBurst: 1})

	send := func(xff string) int {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(submitBody("", "Ada", "10:00", 1)))
		req := httptest.NewRequest(http.MethodPost, "/api/bookings", &buf)
		req.RemoteAddr = "198.51.100.7:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadRequest, send("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, send("203.0.113.3"))
}
