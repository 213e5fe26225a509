package models

import "time"

// ProviderAccount stores external OAuth provider identities linked to a user.
// Provider tokens are not persisted; sign-in only needs the stable user id.
type ProviderAccount struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"index" json:"user_id"`
	Provider       string    `gorm:"index:provider_uid,unique;type:varchar(50)" json:"provider"`
	ProviderUserID string    `gorm:"index:provider_uid,unique;type:varchar(191)" json:"provider_user_id"`
	Email          string    `gorm:"type:varchar(200);default:''" json:"email"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
