package repository

import (
	"context"
	"time"

	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	UpdatePlan(id uint, plan string) error
	TouchLastLogin(id uint, at time.Time) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountByPlan(plan string) (int64, error)
	Search(query string) ([]models.User, error)
	GetDailyStats(startDate, endDate time.Time) ([]models.DailyStats, error)
}

// ProviderAccountRepository links OAuth identities to users
type ProviderAccountRepository interface {
	GetByProviderUserID(provider, providerUserID string) (*models.ProviderAccount, error)
	Create(account *models.ProviderAccount) error
	ListByUserID(userID uint) ([]models.ProviderAccount, error)
}

// TrialUsageRepository is the append-only log of anonymous tool uses.
type TrialUsageRepository interface {
	Create(ctx context.Context, usage *models.TrialUsage) error
	CountSince(ctx context.Context, ip string, since time.Time) (int64, error)
	OldestSince(ctx context.Context, ip string, since time.Time) (*models.TrialUsage, error)
	ListSince(ctx context.Context, ip string, since time.Time) ([]models.TrialUsage, error)
	CountAllSince(ctx context.Context, since time.Time) (int64, error)
	CountDistinctIPsSince(ctx context.Context, since time.Time) (int64, error)
}

// ToolUsageRepository reads and writes the per-day tool invocation rollup.
type ToolUsageRepository interface {
	AddCounts(day string, counts map[string]int64) error
	ListByDay(day string) ([]models.ToolUsageDaily, error)
	TotalsSince(day string) (map[string]int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User            UserRepository
	ProviderAccount ProviderAccountRepository
	TrialUsage      TrialUsageRepository
	ToolUsage       ToolUsageRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:            NewUserRepository(db),
		ProviderAccount: NewProviderAccountRepository(db),
		TrialUsage:      NewTrialUsageRepository(db),
		ToolUsage:       NewToolUsageRepository(db),
	}
}
