package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/config"
	"gymbook/internal/model"
)

// ErrReferencedCatalogChange is returned when a sync would rename a service or
// coach, or change a service duration, that existing bookings already use.
var ErrReferencedCatalogChange = errors.New("catalog entry is referenced by bookings")

// SyncFacilityFromConfig applies facility.yaml to the database in a single
// transaction. It upserts services and coaches, replaces coach links and
// configured opening hours, deactivates entries missing from the file and
// replaces the admin list. Services and coaches referenced by bookings keep
// their name, and services keep their duration; a config that changes them is
// rejected with ErrReferencedCatalogChange and nothing is written.
func (db *DB) SyncFacilityFromConfig(ctx context.Context, cfg *config.FacilityConfig) (err error) {
	if cfg == nil {
		return fmt.Errorf("facility config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()

	if _, err = tx.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset services: %w", err)
	}
	for _, s := range cfg.Services {
		if err = checkServiceChange(ctx, tx, s); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO services (id, name, duration_minutes, price, description, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				duration_minutes = excluded.duration_minutes,
				price = excluded.price,
				description = excluded.description,
				is_active = 1,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, s.DurationMinutes, s.Price, nullString(s.Description), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync service %d: %w", s.ID, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE coaches SET is_active = 0, updated_at = ?`, now); err != nil {
		return fmt.Errorf("reset coaches: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM coach_services`); err != nil {
		return fmt.Errorf("reset coach services: %w", err)
	}
	for _, c := range cfg.Coaches {
		if err = checkCoachRename(ctx, tx, c); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO coaches (id, full_name, expertise_tags, bio, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				full_name = excluded.full_name,
				expertise_tags = excluded.expertise_tags,
				bio = excluded.bio,
				is_active = 1,
				updated_at = excluded.updated_at`,
			c.ID, c.FullName, nullString(c.ExpertiseTags), nullString(c.Bio), now, now,
		)
		if err != nil {
			return fmt.Errorf("sync coach %d: %w", c.ID, err)
		}
		for _, sid := range c.Services {
			if _, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO coach_services (coach_id, service_id) VALUES (?, ?)`, c.ID, sid,
			); err != nil {
				return fmt.Errorf("link coach %d to service %d: %w", c.ID, sid, err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM opening_hours`); err != nil {
		return fmt.Errorf("reset opening hours: %w", err)
	}
	for _, h := range cfg.Hours() {
		if err = saveOpeningHours(ctx, tx, h, now); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM admins`); err != nil {
		return fmt.Errorf("reset admins: %w", err)
	}
	for _, a := range cfg.Admins {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO admins (identity, name, added_at) VALUES (?, ?, ?)`, a.Identity, nullString(a.Name), now,
		); err != nil {
			return fmt.Errorf("sync admin %s: %w", a.Identity, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit facility sync: %w", err)
	}
	db.logger.Info().Str("config", cfg.String()).Msg("facility config synced")
	return nil
}

func checkServiceChange(ctx context.Context, tx *sql.Tx, s config.ServiceConfig) error {
	var (
		name     string
		duration int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT name, duration_minutes FROM services WHERE id = ?`, s.ID,
	).Scan(&name, &duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load service %d: %w", s.ID, err)
	}
	if name == s.Name && model.NormalizeDuration(duration) == model.NormalizeDuration(s.DurationMinutes) {
		return nil
	}

	used, err := referenced(ctx, tx, `service_name`, name)
	if err != nil {
		return fmt.Errorf("check bookings for service %d: %w", s.ID, err)
	}
	if used {
		return fmt.Errorf("service %d %q (%d min) cannot become %q (%d min): %w",
			s.ID, name, duration, s.Name, s.DurationMinutes, ErrReferencedCatalogChange)
	}
	return nil
}

func checkCoachRename(ctx context.Context, tx *sql.Tx, c config.CoachConfig) error {
	var name string
	err := tx.QueryRowContext(ctx, `SELECT full_name FROM coaches WHERE id = ?`, c.ID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load coach %d: %w", c.ID, err)
	}
	if name == c.FullName {
		return nil
	}

	used, err := referenced(ctx, tx, `coach`, name)
	if err != nil {
		return fmt.Errorf("check bookings for coach %d: %w", c.ID, err)
	}
	if used {
		return fmt.Errorf("coach %d %q cannot be renamed to %q: %w", c.ID, name, c.FullName, ErrReferencedCatalogChange)
	}
	return nil
}

// referenced reports whether any booking, in any status, stores value in column.
func referenced(ctx context.Context, tx *sql.Tx, column, value string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM appointment_requests WHERE `+column+` = ?)`, value,
	).Scan(&exists)
	return exists, err
}
