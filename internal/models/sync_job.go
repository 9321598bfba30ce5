package models

import "time"

type SyncJobStatus string

const (
	JobStatusRunning   SyncJobStatus = "running"
	JobStatusCompleted SyncJobStatus = "completed"
	JobStatusFailed    SyncJobStatus = "failed"
	JobStatusCancelled SyncJobStatus = "cancelled"
)

type SyncJobType string

const (
	JobTypeFullScan      SyncJobType = "full_scan"      // every candidate ZIP missing from the cache
	JobTypeTargetedRetry SyncJobType = "targeted_retry" // re-probe suspicious no-coverage ZIPs
	JobTypeRangeLimited  SyncJobType = "range_limited"  // candidates restricted to a key range
)

// SyncJob tracks one synchronization run. Counters are monotonically
// non-decreasing while the job is running; CompletedAt is set exactly once,
// together with a terminal status.
type SyncJob struct {
	ID                string        `gorm:"column:id;primaryKey"`
	JobType           SyncJobType   `gorm:"column:job_type"`
	Status            SyncJobStatus `gorm:"column:status;index"`
	ZipCodesTotal     int           `gorm:"column:zip_codes_total"`
	ZipCodesProcessed int           `gorm:"column:zip_codes_processed"`
	RetailersFound    int           `gorm:"column:retailers_found"`
	ErrorsEncountered int           `gorm:"column:errors_encountered"`
	APICallsMade      int           `gorm:"column:api_calls_made"`
	StartedAt         time.Time     `gorm:"column:started_at"`
	CompletedAt       *time.Time    `gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM
func (SyncJob) TableName() string {
	return "coverage_sync_jobs"
}

// Terminal reports whether the status is a final one.
func (s SyncJobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}
