package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gymbook/internal/model"
)

// BlockedMember represents a blocked member record.
type BlockedMember struct {
	Email     string    `json:"email"`
	BlockedAt time.Time `json:"blocked_at"`
	Reason    string    `json:"reason,omitempty"`
	BlockedBy string    `json:"blocked_by,omitempty"`
}

// Admin represents an identity allowed to decide requests.
type Admin struct {
	Identity string    `json:"identity"`
	Name     string    `json:"name,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// IsAdmin checks if identity is a registered admin.
func (db *DB) IsAdmin(ctx context.Context, identity string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM admins WHERE identity = ?",
		identity,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListAdmins returns all admins.
func (db *DB) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := db.QueryContext(ctx, "SELECT identity, name, added_at FROM admins ORDER BY identity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Admin
	for rows.Next() {
		var a Admin
		var name sql.NullString
		if err := rows.Scan(&a.Identity, &name, &a.AddedAt); err != nil {
			return nil, err
		}
		a.Name = name.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// IsBlocked checks if a member email is blocked.
func (db *DB) IsBlocked(ctx context.Context, email string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM blocked_members WHERE email = ?",
		model.NormalizeEmail(email),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetBlockedMember returns blocked member details, or nil when not blocked.
func (db *DB) GetBlockedMember(ctx context.Context, email string) (*BlockedMember, error) {
	var bm BlockedMember
	var reason, by sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT email, blocked_at, reason, blocked_by FROM blocked_members WHERE email = ?",
		model.NormalizeEmail(email),
	).Scan(&bm.Email, &bm.BlockedAt, &reason, &by)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	bm.Reason = reason.String
	bm.BlockedBy = by.String
	return &bm, nil
}

// BlockMember adds a member to the blocklist.
func (db *DB) BlockMember(ctx context.Context, email, reason, blockedBy string) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO blocked_members (email, blocked_at, reason, blocked_by)
		VALUES (?, ?, ?, ?)`,
		model.NormalizeEmail(email), time.Now(), nullString(reason), nullString(blockedBy),
	)
	return err
}

// UnblockMember removes a member from the blocklist.
func (db *DB) UnblockMember(ctx context.Context, email string) error {
	_, err := db.ExecContext(ctx,
		"DELETE FROM blocked_members WHERE email = ?",
		model.NormalizeEmail(email),
	)
	return err
}

// ListBlockedMembers returns all blocked members, most recent first.
func (db *DB) ListBlockedMembers(ctx context.Context) ([]BlockedMember, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT email, blocked_at, reason, blocked_by FROM blocked_members ORDER BY blocked_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BlockedMember
	for rows.Next() {
		var bm BlockedMember
		var reason, by sql.NullString
		if err := rows.Scan(&bm.Email, &bm.BlockedAt, &reason, &by); err != nil {
			return nil, err
		}
		bm.Reason = reason.String
		bm.BlockedBy = by.String
		out = append(out, bm)
	}
	return out, rows.Err()
}
