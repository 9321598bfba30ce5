package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealcart/coverage-worker/internal/models"
)

// existingKeysPageSize is the page size for the existence scan. Pages are
// fetched one at a time so a full cache (tens of thousands of rows) never has
// to be materialized by the database in one response.
const existingKeysPageSize = 1000

// KeyRange restricts a scan to zip codes in [Start, End]. Empty bounds are
// unbounded.
type KeyRange struct {
	Start string
	End   string
}

type CacheRepository struct {
	db *gorm.DB
}

func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Upsert writes or replaces the entry for its zip code. Probes are idempotent
// and order-independent, so last writer wins.
func (r *CacheRepository) Upsert(ctx context.Context, entry models.CacheEntry) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "zip_code"}},
		UpdateAll: true,
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert cache entry for %s: %w", entry.ZipCode, result.Error)
	}
	return nil
}

// ExistingKeys returns the set of zip codes already present in the cache,
// optionally restricted to a key range. Rows are scanned in pages; a short
// page signals end of data.
func (r *CacheRepository) ExistingKeys(ctx context.Context, rng KeyRange) (map[string]struct{}, error) {
	keys := make(map[string]struct{})

	for offset := 0; ; offset += existingKeysPageSize {
		var page []string
		query := r.db.WithContext(ctx).Model(&models.CacheEntry{})
		if rng.Start != "" {
			query = query.Where("zip_code >= ?", rng.Start)
		}
		if rng.End != "" {
			query = query.Where("zip_code <= ?", rng.End)
		}
		result := query.Order("zip_code").
			Offset(offset).
			Limit(existingKeysPageSize).
			Pluck("zip_code", &page)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to scan existing keys: %w", result.Error)
		}

		for _, k := range page {
			keys[k] = struct{}{}
		}

		if len(page) < existingKeysPageSize {
			break
		}
	}

	return keys, nil
}

// KeysWithoutCoverage returns valid cached zip codes with no coverage whose
// prefix matches one of the given ones. Used by targeted retries of major
// metro areas where a no-retailer answer is likely a false negative.
func (r *CacheRepository) KeysWithoutCoverage(ctx context.Context, prefixes []string) ([]string, error) {
	if len(prefixes) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Model(&models.CacheEntry{}).
		Where("is_valid = ? AND has_coverage = ?", true, false)

	prefixScope := r.db.Where("zip_code LIKE ?", prefixes[0]+"%")
	for _, p := range prefixes[1:] {
		prefixScope = prefixScope.Or("zip_code LIKE ?", p+"%")
	}
	query = query.Where(prefixScope)

	var keys []string
	if err := query.Order("zip_code").Pluck("zip_code", &keys).Error; err != nil {
		return nil, fmt.Errorf("failed to query no-coverage keys: %w", err)
	}
	return keys, nil
}

// Get retrieves a single cache entry.
func (r *CacheRepository) Get(ctx context.Context, zipCode string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	result := r.db.WithContext(ctx).First(&entry, "zip_code = ?", zipCode)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get cache entry for %s: %w", zipCode, result.Error)
	}
	return &entry, nil
}

// Count returns the number of cached entries.
func (r *CacheRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.CacheEntry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
