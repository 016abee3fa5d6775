package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

// ModerationService covers the admin side: the approval queue and the
// admin flag itself.
//
// AUTHORIZATION:
// None of these methods check who is calling. The HTTP layer only routes
// admins here (middleware.RequireAdmin), and SetAdmin is reachable only
// from the promote command on the server host.
type ModerationService struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewModerationService creates a ModerationService.
func NewModerationService(profiles repository.ProfileRepository, logger *slog.Logger) *ModerationService {
	return &ModerationService{profiles: profiles, logger: logger}
}

// ListPending returns organizations whose approval is exactly false.
// Organizations with no approval value at all are not pending.
func (s *ModerationService) ListPending(ctx context.Context) ([]model.Profile, error) {
	profiles, err := s.profiles.ListByAccountType(ctx, model.AccountOrganization)
	if err != nil {
		s.logger.Error("failed to list pending organizations", slog.String("error", err.Error()))
		return nil, apperror.DocumentReadFailed("profiles", err)
	}

	out := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.IsPending() {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetApproval overwrites the approval flag on a profile.
func (s *ModerationService) SetApproval(ctx context.Context, userID string, approved bool) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}

	if err := s.profiles.SetApproved(ctx, userID, approved); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to set approval",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return apperror.DocumentWriteFailed("profile", userID, err)
	}

	s.logger.Info("approval changed", slog.String("user_id", userID), slog.Bool("approved", approved))
	return nil
}

// SetAdmin grants or revokes the admin flag on the profile registered with
// email and returns the updated profile.
func (s *ModerationService) SetAdmin(ctx context.Context, email string, isAdmin bool) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.DocumentReadFailed("profile", err)
	}

	if err := s.profiles.SetAdmin(ctx, profile.ID, isAdmin); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.DocumentWriteFailed("profile", profile.ID, err)
	}
	profile.IsAdmin = isAdmin

	s.logger.Info("admin flag changed", slog.String("user_id", profile.ID), slog.Bool("is_admin", isAdmin))
	return profile, nil
}

// IsAdmin reports whether userID has the admin flag. A missing profile is
// not an admin.
func (s *ModerationService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, apperror.DocumentReadFailed("profile", err)
	}
	return profile.IsAdmin, nil
}
