package credits

import (
	"context"
	"errors"
	"time"

	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the credit service.
type Repository interface {
	GetBalance(ctx context.Context, userID uint) (int64, error)
	// Apply writes entry and moves the balance by entry.Amount in one
	// transaction. It returns applied=false with the current balance when
	// entry.Reference was already used.
	Apply(ctx context.Context, entry *models.CreditTransaction) (applied bool, balance int64, err error)
	ListTransactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error)
	SumByKindSince(ctx context.Context, kind string, since time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credit repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var bal models.CreditBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal.Balance, nil
}

func (r *gormRepository) Apply(ctx context.Context, entry *models.CreditTransaction) (bool, int64, error) {
	applied := false
	var balance int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CreditBalance{UserID: entry.UserID}).Error; err != nil {
			return err
		}

		var bal models.CreditBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", entry.UserID).First(&bal).Error; err != nil {
			return err
		}
		balance = bal.Balance

		var existing int64
		if err := tx.Model(&models.CreditTransaction{}).
			Where("reference = ?", entry.Reference).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		next := bal.Balance + entry.Amount
		if next < 0 {
			return ErrInsufficientCredits
		}

		if err := tx.Model(&models.CreditBalance{}).Where("id = ?", bal.ID).
			Update("balance", next).Error; err != nil {
			return err
		}
		entry.BalanceAfter = next
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		applied = true
		balance = next
		return nil
	})
	if err != nil {
		return false, balance, err
	}
	return applied, balance, nil
}

func (r *gormRepository) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.CreditTransaction, error) {
	var entries []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *gormRepository) SumByKindSince(ctx context.Context, kind string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("kind = ? AND created_at >= ?", kind, since).
		Row().Scan(&total)
	return total, err
}
