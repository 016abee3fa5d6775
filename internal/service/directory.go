package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/community-hub/internal/apperror"
	"github.com/sakif/community-hub/internal/model"
	"github.com/sakif/community-hub/internal/repository"
)

// DirectoryService answers the public "who is here" listings.
type DirectoryService struct {
	profiles repository.ProfileRepository
	logger   *slog.Logger
}

// NewDirectoryService creates a DirectoryService.
func NewDirectoryService(profiles repository.ProfileRepository, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{profiles: profiles, logger: logger}
}

// ListLocalUsers returns local members, optionally filtered by country.
//
// The country match is case-insensitive and exact. Members who left their
// country blank are kept by the filter: only a country that is present and
// different excludes a member.
func (s *DirectoryService) ListLocalUsers(ctx context.Context, country string) ([]model.Profile, error) {
	profiles, err := s.profiles.ListByAccountType(ctx, model.AccountLocal)
	if err != nil {
		s.logger.Error("failed to list local users", slog.String("error", err.Error()))
		return nil, apperror.DocumentReadFailed("profiles", err)
	}

	country = strings.TrimSpace(country)
	if country == "" {
		return profiles, nil
	}

	out := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.Country == "" || strings.EqualFold(p.Country, country) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ListApprovedOrganizations returns organizations whose approval is exactly
// true, optionally filtered by country and sector.
//
// Unlike ListLocalUsers, a filter here requires the field to be present: an
// organization with no sector never matches a sector filter.
func (s *DirectoryService) ListApprovedOrganizations(ctx context.Context, country, sector string) ([]model.Profile, error) {
	profiles, err := s.profiles.ListByAccountType(ctx, model.AccountOrganization)
	if err != nil {
		s.logger.Error("failed to list organizations", slog.String("error", err.Error()))
		return nil, apperror.DocumentReadFailed("profiles", err)
	}

	country = strings.TrimSpace(country)
	sector = strings.TrimSpace(sector)

	out := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		if !p.IsApproved() {
			continue
		}
		if !matchesPresent(p.Country, country) || !matchesPresent(p.Sector, sector) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// matchesPresent reports whether value satisfies filter. An empty filter
// matches anything; otherwise value must be non-empty and equal ignoring case.
func matchesPresent(value, filter string) bool {
	if filter == "" {
		return true
	}
	return value != "" && strings.EqualFold(value, filter)
}
