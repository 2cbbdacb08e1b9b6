package ledger

import (
	"context"
	"fmt"
	"time"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Recompute refreshes the totals for the given days, deduplicating days that
// normalize to the same date. Callers pass every day an appointment change
// may have touched (the old day and the new day of a move, for instance).
func (s *Service) Recompute(ctx context.Context, days ...time.Time) error {
	seen := make(map[string]bool, len(days))
	for _, d := range days {
		key := Day(d).Format("2006-01-02")
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := s.repo.RecomputeDay(ctx, d); err != nil {
			return fmt.Errorf("recompute revenue for %s: %w", key, err)
		}
	}
	return nil
}

func (s *Service) DayTotal(ctx context.Context, day time.Time) (*DailyRevenue, error) {
	return s.repo.GetDay(ctx, day)
}

func (s *Service) Range(ctx context.Context, from, to time.Time) ([]*DailyRevenue, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}
	return s.repo.Range(ctx, from, to)
}
