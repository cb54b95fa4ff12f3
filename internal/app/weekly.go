package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prodigyranking/ratingengine/internal/domain/delta"
	"github.com/prodigyranking/ratingengine/internal/domain/model"
	"github.com/prodigyranking/ratingengine/pkg/logger"
)

// Mode selects what a weekly job does.
type Mode string

const (
	// ModeFull captures the snapshot for the date, then rebuilds.
	ModeFull Mode = "full"
	// ModeSnapshotOnly captures without rebuilding.
	ModeSnapshotOnly Mode = "snapshot-only"
	// ModeDeltaOnly rebuilds against existing snapshots without capturing.
	ModeDeltaOnly Mode = "delta-only"
	// ModeDryRun rebuilds without capturing or publishing.
	ModeDryRun Mode = "dry-run"
)

// Modes lists every weekly mode.
func Modes() []Mode { return []Mode{ModeFull, ModeSnapshotOnly, ModeDeltaOnly, ModeDryRun} }

// ParseMode validates a weekly mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// WeeklyResult reports what a weekly job did. Snapshot is nil when the mode
// does not capture; Run is nil when it does not rebuild.
type WeeklyResult struct {
	Mode     Mode                 `json:"mode"`
	Date     time.Time            `json:"date"`
	Snapshot *delta.CaptureResult `json:"snapshot,omitempty"`
	Run      *RunSummary          `json:"run,omitempty"`
}

// CaptureSnapshot stores every entity's cumulative counters for date. A date
// already captured is skipped and reported as stored.
func (s *Service) CaptureSnapshot(ctx context.Context, date time.Time) (delta.CaptureResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	res, err := s.tracker.Capture(ctx, date)
	if err != nil {
		return res, fmt.Errorf("%w: capture snapshot: %w", ErrRunFailed, err)
	}
	return res, nil
}

// Weekly runs the weekly job for date (today when zero) in mode.
func (s *Service) Weekly(ctx context.Context, mode Mode, date time.Time) (WeeklyResult, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return WeeklyResult{}, err
	}
	if date.IsZero() {
		date = s.now()
	}
	res := WeeklyResult{Mode: mode, Date: model.Day(date)}
	s.logger.Info(ctx, "weekly job started",
		logger.String("mode", string(mode)),
		logger.String("date", res.Date.Format(model.DateLayout)),
	)

	if mode == ModeFull || mode == ModeSnapshotOnly {
		snap, err := s.CaptureSnapshot(ctx, res.Date)
		if err != nil {
			return res, err
		}
		res.Snapshot = &snap
	}
	if mode == ModeSnapshotOnly {
		return res, nil
	}

	sum, err := s.Rebuild(ctx, RebuildOptions{
		AsOf:   res.Date,
		DryRun: mode == ModeDryRun,
		Mode:   string(mode),
	})
	if err != nil {
		return res, err
	}
	res.Run = &sum
	return res, nil
}
