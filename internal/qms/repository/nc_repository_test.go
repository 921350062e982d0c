package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stratamine/qms/internal/qms/testutil"
)

func TestNextSequenceConcurrentAllocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewNCRepository(db)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.NextSequence(ctx, testutil.TestSiteID, 2026)
			if err != nil {
				t.Errorf("NextSequence failed: %v", err)
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for seq := range results {
		if seen[seq] {
			t.Errorf("Sequence %d allocated twice", seq)
		}
		seen[seq] = true
	}
	for i := int64(1); i <= workers; i++ {
		if !seen[i] {
			t.Errorf("Expected sequence %d to be allocated", i)
		}
	}
}

func TestNextSequenceIsolatedBySiteAndYear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewNCRepository(db)
	ctx := context.Background()

	first, err := repo.NextSequence(ctx, testutil.TestSiteID, 2026)
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if first != 1 {
		t.Errorf("Expected first ordinal 1, got %d", first)
	}

	second, err := repo.NextSequence(ctx, testutil.TestSiteID, 2026)
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if second != 2 {
		t.Errorf("Expected second ordinal 2, got %d", second)
	}

	otherYear, err := repo.NextSequence(ctx, testutil.TestSiteID, 2027)
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if otherYear != 1 {
		t.Errorf("Expected a fresh counter for a new year, got %d", otherYear)
	}

	otherSite, err := repo.NextSequence(ctx, "MINE-B", 2026)
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if otherSite != 1 {
		t.Errorf("Expected a fresh counter for another site, got %d", otherSite)
	}
}
