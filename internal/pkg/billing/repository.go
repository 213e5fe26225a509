package billing

import (
	"time"

	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	UpsertCustomer(customer *models.BillingCustomer) error
	GetCustomerByUserID(userID uint, provider string) (*models.BillingCustomer, error)
	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	ListRecentWebhookEvents(limit int) ([]models.BillingWebhookEvent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertCustomer(customer *models.BillingCustomer) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "provider"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_customer_id",
			"email",
			"updated_at",
		}),
	}).Create(customer).Error; err != nil {
		return err
	}

	return r.db.Where("user_id = ? AND provider = ?", customer.UserID, customer.Provider).
		First(customer).Error
}

func (r *gormRepository) GetCustomerByUserID(userID uint, provider string) (*models.BillingCustomer, error) {
	var customer models.BillingCustomer
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) ListRecentWebhookEvents(limit int) ([]models.BillingWebhookEvent, error) {
	var events []models.BillingWebhookEvent
	err := r.db.Omit("payload_json").Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error
	return events, err
}
