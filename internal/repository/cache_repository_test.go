package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mealcart/coverage-worker/internal/models"
)

func entryFor(zip string, valid, coverage bool) models.CacheEntry {
	now := time.Now()
	status := 200
	return models.CacheEntry{
		ZipCode:           zip,
		IsValid:           valid,
		HasCoverage:       coverage,
		LastUpdated:       now,
		LastAPICheck:      now,
		APIResponseStatus: &status,
	}
}

func TestUpsert_LastWriterWins(t *testing.T) {
	db := openTestDB(t)
	repo := NewCacheRepository(db)
	ctx := context.Background()

	first := entryFor("10001", true, false)
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	count := 4
	second := entryFor("10001", true, true)
	second.RetailerCount = &count
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("expected no error on replace, got %v", err)
	}

	got, err := repo.Get(ctx, "10001")
	if err != nil {
		t.Fatalf("expected entry, got %v", err)
	}
	if !got.HasCoverage {
		t.Error("expected the later probe to win")
	}
	if got.RetailerCount == nil || *got.RetailerCount != 4 {
		t.Errorf("expected retailer count 4, got %v", got.RetailerCount)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("expected count, got %v", err)
	}
	if n != 1 {
		t.Errorf("expected a single row after upsert, got %d", n)
	}
}

func TestExistingKeys_ScansAllPages(t *testing.T) {
	db := openTestDB(t)
	repo := NewCacheRepository(db)
	ctx := context.Background()

	// More rows than two scan pages to force pagination.
	total := existingKeysPageSize*2 + 137
	rows := make([]models.CacheEntry, 0, total)
	for i := 0; i < total; i++ {
		rows = append(rows, entryFor(fmt.Sprintf("%05d", i+1), true, i%2 == 0))
	}
	if err := db.CreateInBatches(rows, 500).Error; err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	keys, err := repo.ExistingKeys(ctx, KeyRange{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(keys) != total {
		t.Fatalf("expected %d keys, got %d", total, len(keys))
	}
	for _, zip := range []string{"00001", fmt.Sprintf("%05d", total)} {
		if _, ok := keys[zip]; !ok {
			t.Errorf("expected key %s in scan result", zip)
		}
	}
}

func TestExistingKeys_RespectsRange(t *testing.T) {
	db := openTestDB(t)
	repo := NewCacheRepository(db)
	ctx := context.Background()

	for _, zip := range []string{"10001", "30301", "90210"} {
		if err := repo.Upsert(ctx, entryFor(zip, true, true)); err != nil {
			t.Fatalf("failed to seed %s: %v", zip, err)
		}
	}

	keys, err := repo.ExistingKeys(ctx, KeyRange{Start: "30000", End: "39999"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key in range, got %d", len(keys))
	}
	if _, ok := keys["30301"]; !ok {
		t.Error("expected 30301 in range result")
	}
}

func TestKeysWithoutCoverage_FiltersByPrefixAndVerdict(t *testing.T) {
	db := openTestDB(t)
	repo := NewCacheRepository(db)
	ctx := context.Background()

	seed := []models.CacheEntry{
		entryFor("10001", true, false),  // metro prefix, suspicious
		entryFor("10099", true, false),  // metro prefix, suspicious
		entryFor("10002", true, true),   // metro prefix, but covered
		entryFor("54321", true, false),  // no matching prefix
		entryFor("10003", false, false), // invalid zip, never retried
	}
	for _, e := range seed {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("failed to seed %s: %v", e.ZipCode, err)
		}
	}

	keys, err := repo.KeysWithoutCoverage(ctx, []string{"100", "902"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{"10001", "10099"}
	if len(keys) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, keys)
	}
	for i, want := range expected {
		if keys[i] != want {
			t.Errorf("index %d: expected %s, got %s", i, want, keys[i])
		}
	}
}

func TestKeysWithoutCoverage_EmptyPrefixes(t *testing.T) {
	db := openTestDB(t)
	repo := NewCacheRepository(db)

	keys, err := repo.KeysWithoutCoverage(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("expected no keys for empty prefixes, got %v", keys)
	}
}
