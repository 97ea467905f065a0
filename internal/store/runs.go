package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/reelfeed/reelfeed/internal/domain"
)

// SaveRun persists run metadata, replacing any earlier snapshot of the run.
func (s *Store) SaveRun(ctx context.Context, run *domain.RunMetadata) error {
	if run.RunID == "" {
		return fmt.Errorf("run has no id")
	}
	return s.Runs.Put(ctx, run.RunID, run)
}

// RunsOn returns the runs recorded for a run date (YYYY-MM-DD).
func (s *Store) RunsOn(ctx context.Context, runDate string) ([]*domain.RunMetadata, error) {
	return s.Runs.ListByIndex(ctx, "date", runDate)
}

// RecentRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*domain.RunMetadata, error) {
	var runs []*domain.RunMetadata
	for run, err := range s.Runs.List(ctx) {
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	slices.SortFunc(runs, func(a, b *domain.RunMetadata) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
