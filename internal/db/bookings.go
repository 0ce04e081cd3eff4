package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"gymbook/internal/booking"
	"gymbook/internal/model"
)

const appointmentColumns = `id, full_name, email, phone, date, time_slot, coach, service_name,
	notes, status, requested_at, decided_at, decided_by`

// txStore exposes the store API on top of an open transaction.
type txStore struct {
	q querier
}

// WithinTx runs fn in a write transaction, committing on nil error.
func (db *DB) WithinTx(ctx context.Context, fn func(tx booking.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&txStore{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListBookings returns appointment requests matching filter.
func (db *DB) ListBookings(ctx context.Context, filter booking.BookingFilter) ([]model.Appointment, error) {
	return listBookings(ctx, db.DB, filter)
}

// GetBooking returns a request by ID or booking.ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Appointment, error) {
	return getBooking(ctx, db.DB, id)
}

func (t *txStore) ListBookings(ctx context.Context, filter booking.BookingFilter) ([]model.Appointment, error) {
	return listBookings(ctx, t.q, filter)
}

func (t *txStore) GetBooking(ctx context.Context, id int64) (*model.Appointment, error) {
	return getBooking(ctx, t.q, id)
}

func (t *txStore) ListServices(ctx context.Context) ([]model.Service, error) {
	return listServices(ctx, t.q)
}

func (t *txStore) ListCoaches(ctx context.Context) ([]model.Coach, error) {
	return listCoaches(ctx, t.q)
}

func (t *txStore) ListCoachServiceLinks(ctx context.Context) ([]model.CoachServiceLink, error) {
	return listCoachServiceLinks(ctx, t.q)
}

func (t *txStore) ListOpeningHours(ctx context.Context) (map[time.Weekday]model.OpeningHours, error) {
	return listOpeningHours(ctx, t.q)
}

// InsertBooking stores a new request and returns its ID.
func (t *txStore) InsertBooking(ctx context.Context, a *model.Appointment) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO appointment_requests
			(full_name, email, phone, date, time_slot, coach, service_name, notes, status, requested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.FullName, model.NormalizeEmail(a.Email), nullString(a.Phone), a.DateString(), a.TimeSlot,
		a.Coach, a.ServiceName, nullString(a.Notes), a.Status.String(), a.RequestedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, booking.ErrSlotTaken
		}
		return 0, fmt.Errorf("insert booking: %w", err)
	}
	return res.LastInsertId()
}

// UpdateBookingStatus applies a decision if the row is still in status from.
func (t *txStore) UpdateBookingStatus(ctx context.Context, id int64, from, to model.Status, decidedAt time.Time, decidedBy string) (bool, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE appointment_requests
		SET status = ?, decided_at = ?, decided_by = ?
		WHERE id = ? AND status = ?`,
		to.String(), decidedAt, decidedBy, id, from.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, booking.ErrSlotTaken
		}
		return false, fmt.Errorf("update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func listBookings(ctx context.Context, q querier, f booking.BookingFilter) ([]model.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if f.Coach != "" {
		where = append(where, "coach = ?")
		args = append(args, f.Coach)
	}
	if f.Member != "" {
		where = append(where, "LOWER(TRIM(email)) = ?")
		args = append(args, model.NormalizeEmail(f.Member))
	}
	if !f.Date.IsZero() {
		where = append(where, "date = ?")
		args = append(args, f.Date.Format(model.DateLayout))
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From.Format(model.DateLayout))
	}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, f.Status.String())
	}
	if f.StatusNot != nil {
		where = append(where, "status <> ?")
		args = append(args, f.StatusNot.String())
	}

	query := "SELECT " + appointmentColumns + " FROM appointment_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, time_slot, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func getBooking(ctx context.Context, q querier, id int64) (*model.Appointment, error) {
	row := q.QueryRowContext(ctx, "SELECT "+appointmentColumns+" FROM appointment_requests WHERE id = ?", id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	return a, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(s scanner) (*model.Appointment, error) {
	var (
		a                     model.Appointment
		phone, notes, decider sql.NullString
		date, status          string
		decidedAt             sql.NullTime
	)
	err := s.Scan(&a.ID, &a.FullName, &a.Email, &phone, &date, &a.TimeSlot, &a.Coach, &a.ServiceName,
		&notes, &status, &a.RequestedAt, &decidedAt, &decider)
	if err != nil {
		return nil, err
	}

	a.Phone = phone.String
	a.Notes = notes.String
	a.DecidedBy = decider.String
	if decidedAt.Valid {
		t := decidedAt.Time
		a.DecidedAt = &t
	}
	if a.Date, err = model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("booking %d: parse date %q: %w", a.ID, date, err)
	}
	if a.Status, err = model.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("booking %d: %w", a.ID, err)
	}
	return &a, nil
}

// ListApprovedSince returns approved bookings dated on or after from.
func (db *DB) ListApprovedSince(ctx context.Context, from time.Time) ([]model.Appointment, error) {
	return listBookings(ctx, db.DB, booking.BookingFilter{
		From:   from,
		Status: statusRef(model.StatusApproved),
	})
}

func statusRef(s model.Status) *model.Status {
	return &s
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
