package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/clinicore/clinic-server/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) RecomputeDay(ctx context.Context, day time.Time) error {
	conn := db.Conn(ctx, r.pool)

	var total decimal.Decimal
	var paidCount int
	err := conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(value), 0), COUNT(*)
		FROM appointment
		WHERE paid AND scheduled_at::date = $1::date`, day).
		Scan(&total, &paidCount)
	if err != nil {
		return err
	}

	if paidCount == 0 {
		_, err = conn.Exec(ctx, `DELETE FROM daily_revenue WHERE day = $1::date`, day)
		return err
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO daily_revenue (day, total)
		VALUES ($1::date, $2)
		ON CONFLICT (day) DO UPDATE SET total = EXCLUDED.total, updated_at = NOW()`,
		day, total)
	return err
}

func (r *repoPG) GetDay(ctx context.Context, day time.Time) (*DailyRevenue, error) {
	var d DailyRevenue
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT day, total, updated_at FROM daily_revenue WHERE day = $1::date`, day).
		Scan(&d.Day, &d.Total, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// An absent row is a zero day, not an error.
		return &DailyRevenue{Day: Day(day)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) Range(ctx context.Context, from, to time.Time) ([]*DailyRevenue, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT day, total, updated_at
		FROM daily_revenue
		WHERE day >= $1::date AND day <= $2::date
		ORDER BY day`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*DailyRevenue
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Day, &d.Total, &d.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &d)
	}
	return items, rows.Err()
}
