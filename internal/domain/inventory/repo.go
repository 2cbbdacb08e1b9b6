package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context, limit, offset int) ([]*Product, int, error)

	// AdjustQuantity applies a signed delta and returns the updated product.
	AdjustQuantity(ctx context.Context, productID uuid.UUID, delta int) (*Product, error)

	CreateMovement(ctx context.Context, m *StockMovement) error
	ListMovements(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*StockMovement, int, error)

	CreateAlert(ctx context.Context, a *StockAlert) error
	HasUnreadAlert(ctx context.Context, productID uuid.UUID) (bool, error)
	ListAlerts(ctx context.Context, unreadOnly bool, limit, offset int) ([]*StockAlert, int, error)
	MarkAlertRead(ctx context.Context, id uuid.UUID) error
}
