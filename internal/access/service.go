// Package access provides admin and member access control.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gymbook/internal/db"
)

// BlockedMember is a blocklist entry.
type BlockedMember = db.BlockedMember

// Admin is an identity allowed to decide requests.
type Admin = db.Admin

// BlocklistRepository stores blocked members.
type BlocklistRepository interface {
	GetBlockedMember(ctx context.Context, email string) (*BlockedMember, error)
	BlockMember(ctx context.Context, email, reason, blockedBy string) error
	UnblockMember(ctx context.Context, email string) error
	ListBlockedMembers(ctx context.Context) ([]BlockedMember, error)
}

// AdminRepository stores admin identities.
type AdminRepository interface {
	IsAdmin(ctx context.Context, identity string) (bool, error)
	ListAdmins(ctx context.Context) ([]Admin, error)
}

// Service checks who may submit and who may decide.
type Service struct {
	blocklist BlocklistRepository
	admins    AdminRepository
	logger    zerolog.Logger
}

// NewService creates a new access control service.
func NewService(blocklist BlocklistRepository, admins AdminRepository, logger zerolog.Logger) *Service {
	return &Service{
		blocklist: blocklist,
		admins:    admins,
		logger:    logger.With().Str("component", "access").Logger(),
	}
}

// CheckMember returns AccessDeniedError when email is blocked.
func (s *Service) CheckMember(ctx context.Context, email string) error {
	blocked, err := s.blocklist.GetBlockedMember(ctx, email)
	if err != nil {
		return fmt.Errorf("checking blocklist: %w", err)
	}
	if blocked != nil {
		reason := "access blocked"
		if blocked.Reason != "" {
			reason = fmt.Sprintf("access blocked: %s", blocked.Reason)
		}
		return &AccessDeniedError{Reason: reason}
	}
	return nil
}

// CheckAdmin returns AccessDeniedError unless identity is a registered admin.
func (s *Service) CheckAdmin(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return &AccessDeniedError{Reason: "decider identity is required"}
	}
	ok, err := s.admins.IsAdmin(ctx, identity)
	if err != nil {
		return fmt.Errorf("checking admin status: %w", err)
	}
	if !ok {
		return &AccessDeniedError{Reason: fmt.Sprintf("%s is not an admin", identity)}
	}
	return nil
}

// BlockMember adds a member to the blocklist. Only admins may block.
func (s *Service) BlockMember(ctx context.Context, email, reason, blockedBy string) error {
	if err := s.CheckAdmin(ctx, blockedBy); err != nil {
		return err
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}
	if err := s.blocklist.BlockMember(ctx, email, reason, blockedBy); err != nil {
		return err
	}

	s.logger.Info().
		Str("email", email).
		Str("blocked_by", blockedBy).
		Str("reason", reason).
		Msg("member blocked")

	return nil
}

// UnblockMember removes a member from the blocklist.
func (s *Service) UnblockMember(ctx context.Context, email, unblockedBy string) error {
	if err := s.CheckAdmin(ctx, unblockedBy); err != nil {
		return err
	}
	if err := s.blocklist.UnblockMember(ctx, email); err != nil {
		return err
	}

	s.logger.Info().
		Str("email", email).
		Str("unblocked_by", unblockedBy).
		Msg("member unblocked")

	return nil
}

// ListBlockedMembers returns all blocked members.
func (s *Service) ListBlockedMembers(ctx context.Context) ([]BlockedMember, error) {
	return s.blocklist.ListBlockedMembers(ctx)
}

// ListAdmins returns all admins.
func (s *Service) ListAdmins(ctx context.Context) ([]Admin, error) {
	return s.admins.ListAdmins(ctx)
}

// AccessDeniedError is returned when access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var ade *AccessDeniedError
	return errors.As(err, &ade)
}
