package service

import (
	"context"

	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
)

// UserService exposes site-scoped user and department directories. These back
// the assignee pickers (responsible person, audit lead) on the frontend.
type UserService struct {
	userRepo *repository.UserRepository
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// List returns a site's active users, optionally filtered by role code.
func (s *UserService) List(ctx context.Context, siteID, roleCode string) ([]entity.User, error) {
	if roleCode != "" {
		return s.userRepo.ListByRole(ctx, siteID, roleCode)
	}
	return s.userRepo.ListBySite(ctx, siteID)
}

// Get returns one user if they belong to the site.
func (s *UserService) Get(ctx context.Context, siteID, id string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.SiteID != siteID {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

// Departments returns a site's active departments.
func (s *UserService) Departments(ctx context.Context, siteID string) ([]entity.Department, error) {
	return s.userRepo.ListDepartments(ctx, siteID)
}

// Roles returns the assignable role set.
func (s *UserService) Roles() []string {
	return []string{
		entity.RoleSuperAdmin,
		entity.RoleSiteAdmin,
		entity.RoleManager,
		entity.RoleVerifier,
		entity.RoleModerator,
		entity.RoleViewer,
	}
}
