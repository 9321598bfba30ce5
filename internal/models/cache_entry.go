package models

import "time"

// CacheEntry is the cached coverage verdict for one ZIP code. The rest of the
// application reads this table at request time instead of calling the
// marketplace API; rows are written only by offline sync runs.
//
// IsValid records whether the ZIP is a recognized, queryable postal code.
// HasCoverage records whether at least one retailer currently serves it.
// The two are distinct: a valid ZIP can have no coverage.
type CacheEntry struct {
	ZipCode           string    `gorm:"column:zip_code;primaryKey;size:5"`
	IsValid           bool      `gorm:"column:is_valid"`
	HasCoverage       bool      `gorm:"column:has_coverage"`
	RetailerCount     *int      `gorm:"column:retailer_count"`
	LastUpdated       time.Time `gorm:"column:last_updated"`
	LastAPICheck      time.Time `gorm:"column:last_api_check"`
	APIResponseStatus *int      `gorm:"column:api_response_status"`
}

// TableName specifies the table name for GORM
func (CacheEntry) TableName() string {
	return "zip_code_cache"
}
