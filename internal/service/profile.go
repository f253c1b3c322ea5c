package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
	"github.com/toptuitions/toptuitions/internal/validate"
)

// ProfileService reads and edits the profile part of a user document.
type ProfileService struct {
	users   repository.UserRepository
	catalog *CatalogService
	logger  *slog.Logger
}

func NewProfileService(users repository.UserRepository, catalog *CatalogService, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, catalog: catalog, logger: logger}
}

// Get returns the user document of userID.
func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", userID, err)
	}
	return user, nil
}

// Update shallow-merges patch into the stored profile and returns the result.
//
// Tuition fields belong to owners: a student sending tuitionName or
// tuitionId gets a 403. A non-zero tuitionId must name a catalog listing.
func (s *ProfileService) Update(ctx context.Context, userID string, patch model.ProfilePatch) (*model.Profile, error) {
	trimPatch(&patch)
	if patch.Name != nil && *patch.Name == "" {
		return nil, apperror.ValidationFailed("name", "name cannot be empty")
	}
	if err := validate.Struct(patch); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: loading %s: %w", userID, err)
	}

	if user.Role != model.RoleTuitionOwner && (patch.TuitionName != nil || patch.TuitionID != nil) {
		return nil, apperror.Forbidden("only tuition owners can set tuition details")
	}
	if patch.TuitionID != nil && *patch.TuitionID != 0 {
		if _, err := s.catalog.Get(*patch.TuitionID); err != nil {
			return nil, apperror.ValidationFailed("tuitionId", fmt.Sprintf("no tuition listing with id %d", *patch.TuitionID))
		}
	}

	merged := user.Profile.Merge(patch)

	if err := s.users.UpdateProfile(ctx, userID, merged); err != nil {
		return nil, fmt.Errorf("service/profile: saving %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return &merged, nil
}

func trimPatch(p *model.ProfilePatch) {
	for _, f := range []*string{p.Name, p.Bio, p.Location, p.Phone, p.PhotoURL, p.TuitionName} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}
