package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mealcart/coverage-worker/internal/models"
)

type RetailerRepository struct {
	db *gorm.DB
}

func NewRetailerRepository(db *gorm.DB) *RetailerRepository {
	return &RetailerRepository{db: db}
}

// ReplaceForZip swaps the retailer rows for a zip code with the latest probe
// result. Delete plus insert inside one transaction keeps a re-probed zip
// from accumulating stale retailers.
func (r *RetailerRepository) ReplaceForZip(ctx context.Context, zipCode string, retailers []models.Retailer) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("zip_code = ?", zipCode).Delete(&models.Retailer{}).Error; err != nil {
			return err
		}
		if len(retailers) == 0 {
			return nil
		}
		return tx.Create(&retailers).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace retailers for %s: %w", zipCode, err)
	}
	return nil
}

// GetByZip retrieves the cached retailers for a zip code, highest priority
// first.
func (r *RetailerRepository) GetByZip(ctx context.Context, zipCode string) ([]models.Retailer, error) {
	var retailers []models.Retailer
	result := r.db.WithContext(ctx).
		Where("zip_code = ?", zipCode).
		Order("priority DESC, name ASC").
		Find(&retailers)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get retailers for %s: %w", zipCode, result.Error)
	}
	return retailers, nil
}
