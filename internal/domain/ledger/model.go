package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyRevenue is the realized revenue for one calendar day. The row is the
// aggregate of value over paid appointments scheduled on that day; it is
// recomputed, never incremented, so repeated paid toggles cannot drift it.
type DailyRevenue struct {
	Day       time.Time       `db:"day" json:"day"`
	Total     decimal.Decimal `db:"total" json:"total"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Day normalizes a timestamp to its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
