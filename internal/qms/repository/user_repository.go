package repository

import (
	"context"
	"errors"

	"github.com/stratamine/qms/internal/qms/entity"
	"gorm.io/gorm"
)

// UserRepository handles user, department and role access.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID loads a user with roles and department.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Preload("Department").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fillRoleCodes(&user)
	return &user, nil
}

// FindByUsername loads a user for login.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Preload("Department").
		Where("username = ? AND status = ?", username, "active").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	fillRoleCodes(&user)
	return &user, nil
}

// ListBySite returns a site's active users.
func (r *UserRepository) ListBySite(ctx context.Context, siteID string) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Preload("Department").
		Where("site_id = ? AND status = ?", siteID, "active").
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	for i := range users {
		fillRoleCodes(&users[i])
	}
	return users, nil
}

// ListByRole returns a site's active users holding a role code. Used to pick
// notification recipients for workflow events.
func (r *UserRepository) ListByRole(ctx context.Context, siteID, roleCode string) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.user_id = users.id").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("users.site_id = ? AND users.status = ? AND roles.code = ?", siteID, "active", roleCode).
		Find(&users).Error
	return users, err
}

// UpdateLastLogin stamps the login time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&entity.User{}).
		Where("id = ?", userID).
		Update("last_login_at", gorm.Expr("now()")).Error
}

// ListDepartments returns a site's departments.
func (r *UserRepository) ListDepartments(ctx context.Context, siteID string) ([]entity.Department, error) {
	var departments []entity.Department
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND status = ?", siteID, "active").
		Order("name ASC").
		Find(&departments).Error
	return departments, err
}

// FindDepartment loads one department.
func (r *UserRepository) FindDepartment(ctx context.Context, siteID, id string) (*entity.Department, error) {
	var dept entity.Department
	err := r.db.WithContext(ctx).
		Preload("Leader").
		Where("site_id = ? AND id = ?", siteID, id).
		First(&dept).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dept, nil
}

func fillRoleCodes(user *entity.User) {
	codes := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		codes = append(codes, role.Code)
	}
	user.RoleCodes = codes
}
