package repository

import (
	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
)

type providerAccountRepository struct {
	db *gorm.DB
}

// NewProviderAccountRepository creates a new provider account repository instance
func NewProviderAccountRepository(db *gorm.DB) ProviderAccountRepository {
	return &providerAccountRepository{db: db}
}

func (r *providerAccountRepository) GetByProviderUserID(provider, providerUserID string) (*models.ProviderAccount, error) {
	var account models.ProviderAccount
	err := r.db.Where("provider = ? AND provider_user_id = ?", provider, providerUserID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *providerAccountRepository) Create(account *models.ProviderAccount) error {
	return r.db.Create(account).Error
}

func (r *providerAccountRepository) ListByUserID(userID uint) ([]models.ProviderAccount, error) {
	var accounts []models.ProviderAccount
	err := r.db.Where("user_id = ?", userID).Order("created_at").Find(&accounts).Error
	return accounts, err
}
