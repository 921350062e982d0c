package entity

import (
	"time"
)

// User account. Role codes are resolved at login and carried flat in the JWT.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	SiteID       string     `json:"site_id" gorm:"size:32;not null;index"`
	Username     string     `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name         string     `json:"name" gorm:"size:64;not null"`
	Email        string     `json:"email" gorm:"size:128;uniqueIndex"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	DepartmentID string     `json:"department_id" gorm:"size:32"`
	Status       string     `json:"status" gorm:"size:16;not null;default:active"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at" gorm:"index"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
	Roles      []Role      `json:"roles,omitempty" gorm:"many2many:user_roles;"`

	// Resolved at auth time; not a database column.
	RoleCodes []string `json:"role_codes,omitempty" gorm:"-"`
}

func (User) TableName() string {
	return "users"
}

// Department within a mine site.
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	SiteID    string    `json:"site_id" gorm:"size:32;not null;index"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	LeaderID  string    `json:"leader_id" gorm:"size:36"`
	Status    string    `json:"status" gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Leader *User `json:"leader,omitempty" gorm:"foreignKey:LeaderID"`
}

func (Department) TableName() string {
	return "departments"
}

// Role is a flat capability tag; there is no role hierarchy.
type Role struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	Code        string    `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Description string    `json:"description" gorm:"type:text"`
	IsSystem    bool      `json:"is_system" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// UserRole links users to roles.
type UserRole struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:36"`
	RoleID    string    `json:"role_id" gorm:"primaryKey;size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// Role codes
const (
	RoleSuperAdmin = "super_admin"
	RoleSiteAdmin  = "site_admin"
	RoleManager    = "manager"
	RoleVerifier   = "verifier"
	RoleModerator  = "moderator"
	RoleViewer     = "viewer"
)
