// Package billing sells credit packs through Stripe Checkout and applies
// the resulting webhooks to the credit ledger.
package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
)

// Service provides provider-neutral customer linkage and webhook bookkeeping.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// LinkCustomer creates or updates the provider customer of a user.
func (s *Service) LinkCustomer(ctx context.Context, userID uint, provider, providerCustomerID, email string) (*models.BillingCustomer, error) {
	_ = ctx
	p := strings.ToLower(strings.TrimSpace(provider))
	cID := strings.TrimSpace(providerCustomerID)
	if userID == 0 || p == "" || cID == "" {
		return nil, errors.New("user_id, provider and provider_customer_id are required")
	}

	customer := &models.BillingCustomer{
		UserID:             userID,
		Provider:           p,
		ProviderCustomerID: cID,
		Email:              strings.TrimSpace(email),
	}
	if err := s.repo.UpsertCustomer(customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// CustomerID returns the provider customer id of a user, or "" when the
// user never completed a checkout.
func (s *Service) CustomerID(ctx context.Context, userID uint, provider string) (string, error) {
	_ = ctx
	customer, err := s.repo.GetCustomerByUserID(userID, strings.ToLower(strings.TrimSpace(provider)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return customer.ProviderCustomerID, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	_ = ctx
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	_ = ctx
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}

// RecentWebhookEvents lists deliveries for the admin view, without payloads.
func (s *Service) RecentWebhookEvents(ctx context.Context, limit int) ([]models.BillingWebhookEvent, error) {
	_ = ctx
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.repo.ListRecentWebhookEvents(limit)
}
