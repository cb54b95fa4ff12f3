package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
)

type staticLoader struct {
	mu      sync.Mutex
	records []model.RatingRecord
	err     error
}

func (s *staticLoader) Records(context.Context) ([]model.RatingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, s.err
}

func rec(id int64, overall int) model.RatingRecord {
	return model.RatingRecord{EntityID: id, Name: "p", SubType: model.Forward, BirthYear: 2008, Overall: overall}
}

func TestLeaderboard_BasicOperations(t *testing.T) {
	ctx := context.Background()
	lb := NewLeaderboard(&staticLoader{records: []model.RatingRecord{rec(3, 70), rec(1, 88), rec(2, 70), rec(4, 41)}})

	if count := lb.Count(ctx); count != 0 {
		t.Errorf("expected empty leaderboard before refresh, got %d", count)
	}
	if err := lb.Refresh(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := lb.Count(ctx); count != 4 {
		t.Errorf("expected count 4, got %d", count)
	}

	entries, err := lb.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIDs := []int64{1, 2, 3, 4}
	wantRanks := []int{1, 2, 2, 3}
	for i, e := range entries {
		if e.EntityID != wantIDs[i] || e.Rank != wantRanks[i] {
			t.Errorf("entry %d: got id=%d rank=%d, want id=%d rank=%d", i, e.EntityID, e.Rank, wantIDs[i], wantRanks[i])
		}
	}

	entry, err := lb.Rank(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 2 || entry.Overall != 70 {
		t.Errorf("expected rank 2 overall 70, got rank %d overall %d", entry.Rank, entry.Overall)
	}
}

func TestLeaderboard_Errors(t *testing.T) {
	ctx := context.Background()
	loader := &staticLoader{records: []model.RatingRecord{rec(1, 50)}}
	lb := NewLeaderboard(loader)
	if err := lb.Refresh(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := lb.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := lb.Rank(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// A failed refresh keeps the previous snapshot.
	loader.mu.Lock()
	loader.err = errors.New("database locked")
	loader.mu.Unlock()
	if err := lb.Refresh(ctx); err == nil {
		t.Error("expected refresh error")
	}
	if count := lb.Count(ctx); count != 1 {
		t.Errorf("expected previous snapshot to survive, got count %d", count)
	}
}

func TestLeaderboard_TopNLimit(t *testing.T) {
	ctx := context.Background()
	lb := NewLeaderboard(&staticLoader{})
	records := make([]model.RatingRecord, 0, 50)
	for i := 1; i <= 50; i++ {
		records = append(records, rec(int64(i), 1+i%99))
	}
	lb.Load(records)

	top, err := lb.TopN(ctx, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].Overall > top[i-1].Overall {
			t.Errorf("entries out of order at %d", i)
		}
	}
}

func TestLeaderboard_ConcurrentReadsDuringLoad(t *testing.T) {
	ctx := context.Background()
	lb := NewLeaderboard(&staticLoader{})
	lb.Load([]model.RatingRecord{rec(1, 60), rec(2, 50)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					lb.Load([]model.RatingRecord{rec(1, 60), rec(2, 50 + j%10)})
					continue
				}
				if _, err := lb.Rank(ctx, 1); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestLeaderboard_StartAndClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lb := NewLeaderboard(&staticLoader{records: []model.RatingRecord{rec(1, 60)}})
	if err := lb.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lb.Count(ctx) != 1 {
		t.Errorf("expected initial refresh to load 1 entry")
	}
	if err := lb.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if err := lb.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}
}
