package ledger

import (
	"context"
	"time"
)

type Repository interface {
	// RecomputeDay re-aggregates the day's total from paid appointments.
	// A day with no paid appointments loses its row.
	RecomputeDay(ctx context.Context, day time.Time) error
	GetDay(ctx context.Context, day time.Time) (*DailyRevenue, error)
	Range(ctx context.Context, from, to time.Time) ([]*DailyRevenue, error)
}
