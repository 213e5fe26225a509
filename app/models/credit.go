package models

import "time"

const (
	CreditKindPurchase        = "purchase"
	CreditKindUsage           = "usage"
	CreditKindAdminAdjustment = "admin_adjustment"
	CreditKindRefund          = "refund"
)

// CreditBalance holds the current prepaid credit balance of a user.
type CreditBalance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreditTransaction is one ledger entry. Positive amounts add credits,
// negative amounts consume them. Reference is unique so provider events and
// retries cannot be applied twice.
type CreditTransaction struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index:idx_credit_tx_user_created,priority:1" json:"user_id"`
	Amount       int64     `gorm:"not null" json:"amount"`
	Kind         string    `gorm:"type:varchar(32);not null;index" json:"kind"`
	Reference    string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"reference"`
	Tool         string    `gorm:"type:varchar(64);default:''" json:"tool,omitempty"`
	Note         string    `gorm:"type:varchar(255);default:''" json:"note,omitempty"`
	BalanceAfter int64     `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_credit_tx_user_created,priority:2" json:"created_at"`
}
