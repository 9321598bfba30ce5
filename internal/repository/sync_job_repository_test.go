package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/mealcart/coverage-worker/internal/models"
)

func TestSyncJob_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewSyncJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, models.JobTypeFullScan, 42000)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected a generated job id")
	}
	if job.Status != models.JobStatusRunning {
		t.Errorf("expected running, got %s", job.Status)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("expected job, got %v", err)
	}
	if got.ZipCodesTotal != 42000 || got.JobType != models.JobTypeFullScan {
		t.Errorf("unexpected job row: total=%d type=%s", got.ZipCodesTotal, got.JobType)
	}
	if got.CompletedAt != nil {
		t.Error("expected no completion timestamp on a running job")
	}
}

func TestSyncJob_GetByIDNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewSyncJobRepository(db)

	if _, err := repo.GetByID(context.Background(), "no-such-job"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestSyncJob_UpdateProgress(t *testing.T) {
	db := openTestDB(t)
	repo := NewSyncJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, models.JobTypeFullScan, 100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c := Counters{Processed: 25, RetailersFound: 60, Errors: 2, APICalls: 31}
	if err := repo.UpdateProgress(ctx, job.ID, c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("expected job, got %v", err)
	}
	if got.ZipCodesProcessed != 25 || got.RetailersFound != 60 || got.ErrorsEncountered != 2 || got.APICallsMade != 31 {
		t.Errorf("unexpected counters: processed=%d retailers=%d errors=%d calls=%d",
			got.ZipCodesProcessed, got.RetailersFound, got.ErrorsEncountered, got.APICallsMade)
	}
}

func TestSyncJob_FinalizeOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewSyncJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, models.JobTypeTargetedRetry, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	c := Counters{Processed: 10, RetailersFound: 5, Errors: 1, APICalls: 12}
	if err := repo.Finalize(ctx, job.ID, models.JobStatusCompleted, c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("expected job, got %v", err)
	}
	if got.Status != models.JobStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected a completion timestamp")
	}
	firstCompleted := *got.CompletedAt

	// A second finalization must not rewrite the terminal row.
	if err := repo.Finalize(ctx, job.ID, models.JobStatusFailed, Counters{}); err == nil {
		t.Fatal("expected error finalizing an already-terminal job")
	}

	got, err = repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("expected job, got %v", err)
	}
	if got.Status != models.JobStatusCompleted {
		t.Errorf("expected status to stay completed, got %s", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(firstCompleted) {
		t.Error("expected completed_at to be written exactly once")
	}
	if got.ZipCodesProcessed != 10 {
		t.Errorf("expected final counters preserved, got processed=%d", got.ZipCodesProcessed)
	}
}

func TestSyncJob_FinalizeRejectsNonTerminalStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewSyncJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, models.JobTypeFullScan, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := repo.Finalize(ctx, job.ID, models.JobStatusRunning, Counters{}); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestSyncJob_UpdateProgressSkipsTerminalJob(t *testing.T) {
	db := openTestDB(t)
	repo := NewSyncJobRepository(db)
	ctx := context.Background()

	job, err := repo.Create(ctx, models.JobTypeFullScan, 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := repo.Finalize(ctx, job.ID, models.JobStatusCancelled, Counters{Processed: 4}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The guard makes this a no-op rather than an error.
	if err := repo.UpdateProgress(ctx, job.ID, Counters{Processed: 9}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := repo.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("expected job, got %v", err)
	}
	if got.ZipCodesProcessed != 4 {
		t.Errorf("expected terminal counters untouched, got processed=%d", got.ZipCodesProcessed)
	}
}
