package repository

import (
	"context"
	"errors"
	"time"

	"github.com/accessibility-build/platform/app/models"
	"gorm.io/gorm"
)

type trialUsageRepository struct {
	db *gorm.DB
}

// NewTrialUsageRepository creates a trial usage repository backed by GORM.
func NewTrialUsageRepository(db *gorm.DB) TrialUsageRepository {
	return &trialUsageRepository{db: db}
}

func (r *trialUsageRepository) Create(ctx context.Context, usage *models.TrialUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// CountSince counts rows for ip with created_at >= since.
func (r *trialUsageRepository) CountSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TrialUsage{}).
		Where("ip_address = ? AND created_at >= ?", ip, since).
		Count(&count).Error
	return count, err
}

// OldestSince returns the earliest in-window row for ip, or nil when there is none.
func (r *trialUsageRepository) OldestSince(ctx context.Context, ip string, since time.Time) (*models.TrialUsage, error) {
	var usage models.TrialUsage
	err := r.db.WithContext(ctx).
		Where("ip_address = ? AND created_at >= ?", ip, since).
		Order("created_at ASC").
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

// ListSince returns in-window rows for ip, newest first.
func (r *trialUsageRepository) ListSince(ctx context.Context, ip string, since time.Time) ([]models.TrialUsage, error) {
	var usages []models.TrialUsage
	err := r.db.WithContext(ctx).
		Where("ip_address = ? AND created_at >= ?", ip, since).
		Order("created_at DESC").
		Find(&usages).Error
	return usages, err
}

func (r *trialUsageRepository) CountAllSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TrialUsage{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *trialUsageRepository) CountDistinctIPsSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TrialUsage{}).
		Where("created_at >= ?", since).
		Distinct("ip_address").
		Count(&count).Error
	return count, err
}
