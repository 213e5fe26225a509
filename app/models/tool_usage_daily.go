package models

import "time"

// ToolUsageDaily aggregates tool invocations per tool and day. Counters are
// buffered in the cache and flushed here in batches.
type ToolUsageDaily struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Day       string    `gorm:"type:char(10);not null;index:ux_tool_usage_daily_day_tool,unique,priority:1" json:"day"`
	Tool      string    `gorm:"type:varchar(64);not null;index:ux_tool_usage_daily_day_tool,unique,priority:2" json:"tool"`
	Uses      int64     `gorm:"not null;default:0" json:"uses"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName uses the singular name shared with the SQL migrations.
func (ToolUsageDaily) TableName() string {
	return "tool_usage_daily"
}
