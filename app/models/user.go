package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_DISABLED = "disabled"
)

const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// User is a signed-in account. Accounts are created on first OAuth login;
// there are no local passwords.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Email       string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,min=3,max=200"`
	Role        string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status      string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active disabled"`
	Plan        string         `gorm:"type:varchar(50);default:'free'" json:"plan" validate:"oneof=free premium"`
	AvatarURL   string         `gorm:"type:varchar(255);default:null" json:"avatar_url" validate:"max=255"`
	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// NewOAuthUser builds an active user for a first-time provider login.
func NewOAuthUser(name, email, avatarURL string) (*User, error) {
	u := &User{
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		AvatarURL: avatarURL,
		Role:      ROLE_USER,
		Status:    STATUS_ACTIVE,
		Plan:      PlanFree,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}
