package models

import "time"

// TrialUsage is one anonymous use of a gated tool. Rows are append-only;
// retention cleanup happens outside the application.
type TrialUsage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	IPAddress string    `gorm:"type:varchar(45);not null;index:idx_trial_usage_ip_created,priority:1" json:"ip_address"`
	Tool      string    `gorm:"type:varchar(64);not null;index" json:"tool"`
	UserAgent string    `gorm:"type:varchar(512);default:''" json:"user_agent"`
	Success   bool      `gorm:"default:true" json:"success"`
	CreatedAt time.Time `gorm:"not null;index:idx_trial_usage_ip_created,priority:2" json:"created_at"`
}

// TableName keeps the singular table name used by the SQL migrations.
func (TrialUsage) TableName() string {
	return "trial_usage"
}
