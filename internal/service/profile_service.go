package service

import (
	"context"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/session"
	"storefront/pkg/logger"
)

// ProfileService builds the navigation header of the signed-in user
type ProfileService struct {
	profiles   repository.ProfileRepository
	adminEmail string
	logger     *logger.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(profiles repository.ProfileRepository, adminEmail string, log *logger.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, adminEmail: adminEmail, logger: log.Named("profile")}
}

func (s *ProfileService) Load(ctx context.Context, state *session.State) error {
	user := state.User()
	if user == nil {
		return nil
	}

	profile, err := s.profiles.Get(ctx, user.UID)
	if err != nil {
		return err
	}

	view := *user
	admin := user.IsAdmin()
	if profile != nil {
		if profile.Username != "" {
			view.DisplayName = profile.Username
		}
		if profile.PhotoURL != "" {
			view.PhotoURL = profile.PhotoURL
		}
		admin = admin || profile.Role == domain.RoleAdmin
	}
	if s.adminEmail != "" && strings.EqualFold(user.Email, s.adminEmail) {
		admin = true
	}

	state.SetHeader(domain.Header{
		Username:     view.DisplayName,
		Initial:      view.Initial(),
		PhotoURL:     view.PhotoURL,
		ShowAdminNav: admin,
	})
	return nil
}
