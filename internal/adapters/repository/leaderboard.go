package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
	"github.com/prodigyranking/ratingengine/pkg/metrics"
)

// Ordering: overall DESC, then entity id ASC (deterministic). Entries with
// the same overall share a rank.

// RecordLoader supplies the published record set.
type RecordLoader interface {
	Records(ctx context.Context) ([]model.RatingRecord, error)
}

// Snapshot is an immutable ranked view of one published set.
type Snapshot struct {
	Entries  []Entry // rank order
	ByEntity map[int64]int
	LoadedAt time.Time
}

// Leaderboard serves ranks from the latest snapshot. Readers never block on a
// reload: a new snapshot is built aside and swapped in.
type Leaderboard struct {
	loader          RecordLoader
	snapshot        atomic.Pointer[Snapshot]
	refreshInterval time.Duration
	logger          logger.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewLeaderboard creates an empty leaderboard over loader.
func NewLeaderboard(loader RecordLoader, opts ...LeaderboardOption) *Leaderboard {
	l := &Leaderboard{
		loader:          loader,
		refreshInterval: 30 * time.Second,
		logger:          logger.Get().Named("leaderboard"),
		stopChan:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.snapshot.Store(&Snapshot{ByEntity: map[int64]int{}})
	return l
}

// Refresh reloads the published set and swaps the snapshot.
func (l *Leaderboard) Refresh(ctx context.Context) error {
	records, err := l.loader.Records(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("leaderboard", "refresh")
		return err
	}
	l.Load(records)
	return nil
}

// Load builds a snapshot from records and swaps it in.
func (l *Leaderboard) Load(records []model.RatingRecord) {
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			EntityID:  r.EntityID,
			Name:      r.Name,
			SubType:   r.SubType,
			BirthYear: r.BirthYear,
			Overall:   r.Overall,
		}
	}
	sortEntries(entries)
	assignRanksWithTies(entries)

	byEntity := make(map[int64]int, len(entries))
	for i, e := range entries {
		byEntity[e.EntityID] = i
	}
	l.snapshot.Store(&Snapshot{Entries: entries, ByEntity: byEntity, LoadedAt: time.Now()})
	metrics.UpdateLeaderboardSize(len(entries))
}

// Start refreshes once, then keeps refreshing on the configured interval
// until ctx is done or Close is called.
func (l *Leaderboard) Start(ctx context.Context) error {
	if err := l.Refresh(ctx); err != nil {
		return err
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(l.refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stopChan:
				return
			case <-ticker.C:
				if err := l.Refresh(ctx); err != nil {
					l.logger.Warn(ctx, "leaderboard refresh failed", logger.Error(err))
				}
			}
		}
	}()
	return nil
}

// Close stops the refresher.
func (l *Leaderboard) Close() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()
	return nil
}

// TopN returns the first n entries in rank order.
func (l *Leaderboard) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("leaderboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	s := l.snapshot.Load()
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	out := make([]Entry, n)
	copy(out, s.Entries[:n])
	return out, nil
}

// Rank returns the entry of one entity.
func (l *Leaderboard) Rank(ctx context.Context, entityID int64) (Entry, error) {
	s := l.snapshot.Load()
	i, ok := s.ByEntity[entityID]
	if !ok {
		metrics.RecordErrorByComponent("leaderboard", "not_found")
		return Entry{}, ErrNotFound
	}
	return s.Entries[i], nil
}

// Count returns the number of ranked entities.
func (l *Leaderboard) Count(ctx context.Context) int {
	return len(l.snapshot.Load().Entries)
}

// LoadedAt returns when the current snapshot was built.
func (l *Leaderboard) LoadedAt() time.Time {
	return l.snapshot.Load().LoadedAt
}

// sortEntries sorts by overall (descending) and entity id (ascending).
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Overall != entries[j].Overall {
			return entries[i].Overall > entries[j].Overall
		}
		return entries[i].EntityID < entries[j].EntityID
	})
}

// assignRanksWithTies gives equal overalls the same rank; the next distinct
// overall takes the next consecutive rank.
func assignRanksWithTies(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Overall != entries[i-1].Overall {
			rank++
		}
		entries[i].Rank = rank
	}
}
