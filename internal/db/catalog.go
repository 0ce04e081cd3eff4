package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gymbook/internal/model"
)

// ListServices returns active services ordered by name.
func (db *DB) ListServices(ctx context.Context) ([]model.Service, error) {
	return listServices(ctx, db.DB)
}

// ListCoaches returns active coaches ordered by name.
func (db *DB) ListCoaches(ctx context.Context) ([]model.Coach, error) {
	return listCoaches(ctx, db.DB)
}

// ListCoachServiceLinks returns coach/service pairs.
func (db *DB) ListCoachServiceLinks(ctx context.Context) ([]model.CoachServiceLink, error) {
	return listCoachServiceLinks(ctx, db.DB)
}

// ListOpeningHours returns stored opening hours keyed by weekday. Days
// without a row are absent; callers apply model.DefaultOpeningHours.
func (db *DB) ListOpeningHours(ctx context.Context) (map[time.Weekday]model.OpeningHours, error) {
	return listOpeningHours(ctx, db.DB)
}

func listServices(ctx context.Context, q querier) ([]model.Service, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, duration_minutes, price, description, created_at, updated_at
		FROM services WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		var desc sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.Price, &desc, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Description = desc.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func listCoaches(ctx context.Context, q querier) ([]model.Coach, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, full_name, expertise_tags, bio, created_at
		FROM coaches WHERE is_active = 1 ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("list coaches: %w", err)
	}
	defer rows.Close()

	var out []model.Coach
	for rows.Next() {
		var c model.Coach
		var tags, bio sql.NullString
		if err := rows.Scan(&c.ID, &c.FullName, &tags, &bio, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ExpertiseTags = tags.String
		c.Bio = bio.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func listCoachServiceLinks(ctx context.Context, q querier) ([]model.CoachServiceLink, error) {
	rows, err := q.QueryContext(ctx, `SELECT coach_id, service_id FROM coach_services ORDER BY coach_id, service_id`)
	if err != nil {
		return nil, fmt.Errorf("list coach services: %w", err)
	}
	defer rows.Close()

	var out []model.CoachServiceLink
	for rows.Next() {
		var l model.CoachServiceLink
		if err := rows.Scan(&l.CoachID, &l.ServiceID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func listOpeningHours(ctx context.Context, q querier) (map[time.Weekday]model.OpeningHours, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT day_of_week, open_minutes, close_minutes, is_closed, updated_at FROM opening_hours`)
	if err != nil {
		return nil, fmt.Errorf("list opening hours: %w", err)
	}
	defer rows.Close()

	out := make(map[time.Weekday]model.OpeningHours)
	for rows.Next() {
		var (
			day           int
			open, closeAt sql.NullInt64
			h             model.OpeningHours
		)
		if err := rows.Scan(&day, &open, &closeAt, &h.IsClosed, &h.UpdatedAt); err != nil {
			return nil, err
		}
		h.DayOfWeek = time.Weekday(day)
		if open.Valid && closeAt.Valid {
			h.Open = time.Duration(open.Int64) * time.Minute
			h.Close = time.Duration(closeAt.Int64) * time.Minute
			h.HasHours = true
		}
		out[h.DayOfWeek] = h
	}
	return out, rows.Err()
}

// SaveOpeningHours upserts one weekday's hours.
func (db *DB) SaveOpeningHours(ctx context.Context, h model.OpeningHours) error {
	return saveOpeningHours(ctx, db.DB, h, time.Now())
}

func saveOpeningHours(ctx context.Context, q querier, h model.OpeningHours, now time.Time) error {
	var open, closeAt sql.NullInt64
	if h.HasHours {
		open = sql.NullInt64{Int64: int64(h.Open / time.Minute), Valid: true}
		closeAt = sql.NullInt64{Int64: int64(h.Close / time.Minute), Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO opening_hours (day_of_week, open_minutes, close_minutes, is_closed, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day_of_week) DO UPDATE SET
			open_minutes = excluded.open_minutes,
			close_minutes = excluded.close_minutes,
			is_closed = excluded.is_closed,
			updated_at = excluded.updated_at`,
		int(h.DayOfWeek), open, closeAt, boolToInt(h.IsClosed), now,
	)
	if err != nil {
		return fmt.Errorf("save opening hours for %s: %w", h.DayOfWeek, err)
	}
	return nil
}
