package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a stocked material. Quantity may go negative when settlements
// race; the reorder alert fires when it reaches MinQuantity.
type Product struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	MinQuantity int             `db:"min_quantity" json:"min_quantity"`
	Unit        string          `db:"unit" json:"unit"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Movement directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// StockMovement is one append-only entry in the movement log.
type StockMovement struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProductID uuid.UUID  `db:"product_id" json:"product_id"`
	Direction string     `db:"direction" json:"direction"`
	Quantity  int        `db:"quantity" json:"quantity"`
	Reason    string     `db:"reason" json:"reason"`
	ActorID   *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// AlertKindReorder marks a low-stock alert.
const AlertKindReorder = "reorder"

// StockAlert is raised when a settlement leaves a product at or below its
// reorder threshold.
type StockAlert struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProductID uuid.UUID `db:"product_id" json:"product_id"`
	Kind      string    `db:"kind" json:"kind"`
	Message   string    `db:"message" json:"message"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Line is one material consumption of a settlement: quantity units of a
// product.
type Line struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Valid reports whether the line can be settled. Invalid lines in stored
// payloads are skipped, not failed.
func (l Line) Valid() bool {
	return l.ProductID != uuid.Nil && l.Quantity > 0
}
