package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealcart/coverage-worker/internal/models"
)

var ErrJobNotFound = errors.New("sync job not found")

type SyncJobRepository struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Create inserts a new running job and returns it.
func (r *SyncJobRepository) Create(ctx context.Context, jobType models.SyncJobType, total int) (*models.SyncJob, error) {
	job := models.SyncJob{
		ID:            uuid.New().String(),
		JobType:       jobType,
		Status:        models.JobStatusRunning,
		ZipCodesTotal: total,
		StartedAt:     time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to create sync job: %w", err)
	}
	return &job, nil
}

// Counters is a snapshot of run progress flushed to the job row.
type Counters struct {
	Processed      int
	RetailersFound int
	Errors         int
	APICalls       int
}

// UpdateProgress flushes current counters to a running job. Counters only
// grow, so a flush can never move the row backwards.
func (r *SyncJobRepository) UpdateProgress(ctx context.Context, jobID string, c Counters) error {
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"zip_codes_processed": c.Processed,
			"retailers_found":     c.RetailersFound,
			"errors_encountered":  c.Errors,
			"api_calls_made":      c.APICalls,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update sync job progress: %w", result.Error)
	}
	return nil
}

// Finalize writes the terminal status, final counters, and completion
// timestamp. It only applies to a job still in running state, so completed_at
// is set exactly once even if finalization races.
func (r *SyncJobRepository) Finalize(ctx context.Context, jobID string, status models.SyncJobStatus, c Counters) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finalize sync job with non-terminal status %q", status)
	}

	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":              status,
			"zip_codes_processed": c.Processed,
			"retailers_found":     c.RetailersFound,
			"errors_encountered":  c.Errors,
			"api_calls_made":      c.APICalls,
			"completed_at":        &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finalize sync job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("sync job %s is not running", jobID)
	}
	return nil
}

// GetByID retrieves a sync job by ID.
func (r *SyncJobRepository) GetByID(ctx context.Context, jobID string) (*models.SyncJob, error) {
	var job models.SyncJob
	result := r.db.WithContext(ctx).First(&job, "id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get sync job: %w", result.Error)
	}
	return &job, nil
}
