package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gymbook/internal/access"
	"gymbook/internal/booking"
	"gymbook/internal/model"
	"gymbook/internal/report"
)

// BlockBody is the request body for POST /api/blocklist.
type BlockBody struct {
	Email     string `json:"email"`
	Reason    string `json:"reason"`
	BlockedBy string `json:"blocked_by"`
}

// GET /api/usage
func (s *HTTPServer) handleUsage(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Usage.GetUsageMetrics(r.Context())
	if err != nil {
		s.writeServiceError(w, r, &booking.StorageError{Op: "usage metrics", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /api/reports/usage.xlsx
func (s *HTTPServer) handleUsageReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Usage.GetUsageMetrics(r.Context())
	if err != nil {
		s.writeServiceError(w, r, &booking.StorageError{Op: "usage metrics", Err: err})
		return
	}
	var buf bytes.Buffer
	if err := report.WriteUsage(&buf, rep); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, fmt.Sprintf("usage_%s.xlsx", time.Now().Format(model.DateLayout)), buf.Bytes())
}

// GET /api/reports/tables.xlsx
func (s *HTTPServer) handleTablesReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tables == nil {
		writeError(w, http.StatusNotFound, "table export is not configured")
		return
	}
	var buf bytes.Buffer
	if err := report.WriteTables(r.Context(), s.deps.Tables, &buf); err != nil {
		s.writeServiceError(w, r, &booking.StorageError{Op: "export tables", Err: err})
		return
	}
	writeAttachment(w, fmt.Sprintf("tables_%s.xlsx", time.Now().Format(model.DateLayout)), buf.Bytes())
}

// GET /api/blocklist
func (s *HTTPServer) handleListBlocked(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Access.ListBlockedMembers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, &booking.StorageError{Op: "list blocked members", Err: err})
		return
	}
	if list == nil {
		list = []access.BlockedMember{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocked": list})
}

// POST /api/blocklist
func (s *HTTPServer) handleBlock(w http.ResponseWriter, r *http.Request) {
	var body BlockBody
	if !decodeBody(w, r, &body) {
		return
	}
	email := model.NormalizeEmail(body.Email)
	if email == "" {
		s.writeServiceError(w, r, &booking.ValidationError{Field: "email", Message: "is required"})
		return
	}
	if err := s.deps.Access.BlockMember(r.Context(), email, strings.TrimSpace(body.Reason), body.BlockedBy); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"email": email, "status": "blocked"})
}

// DELETE /api/blocklist?email=...&by=...
func (s *HTTPServer) handleUnblock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := model.NormalizeEmail(q.Get("email"))
	if email == "" {
		s.writeServiceError(w, r, &booking.ValidationError{Field: "email", Message: "is required"})
		return
	}
	if err := s.deps.Access.UnblockMember(r.Context(), email, q.Get("by")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": email, "status": "unblocked"})
}

func writeAttachment(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
