package models

import "time"

// Retailer is one marketplace retailer serving a ZIP code. Rows for a ZIP are
// replaced wholesale whenever a probe of that ZIP returns coverage.
type Retailer struct {
	ID          string    `gorm:"column:id;primaryKey"`
	ZipCode     string    `gorm:"column:zip_code;index;size:5"`
	RetailerKey string    `gorm:"column:retailer_key"`
	Name        string    `gorm:"column:name"`
	Priority    int       `gorm:"column:priority"`
	LastUpdated time.Time `gorm:"column:last_updated"`
}

// TableName specifies the table name for GORM
func (Retailer) TableName() string {
	return "retailers_cache"
}
