package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-server/internal/platform/db"
)

// ErrProductNotFound is returned for operations on an unknown product id.
var ErrProductNotFound = errors.New("product not found")

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const productCols = `id, name, quantity, min_quantity, unit, price, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Quantity, &p.MinQuantity, &p.Unit, &p.Price, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) CreateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO product (id, name, quantity, min_quantity, unit, price)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Quantity, p.MinQuantity, p.Unit, p.Price)
	return err
}

func (r *repoPG) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+productCols+` FROM product WHERE id = $1`, id))
}

func (r *repoPG) UpdateProduct(ctx context.Context, p *Product) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE product
		SET name = $2, min_quantity = $3, unit = $4, price = $5, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.MinQuantity, p.Unit, p.Price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *repoPG) ListProducts(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM product`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+productCols+` FROM product ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AdjustQuantity(ctx context.Context, productID uuid.UUID, delta int) (*Product, error) {
	return scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE product
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productCols, productID, delta))
}

func (r *repoPG) CreateMovement(ctx context.Context, m *StockMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stock_movement (id, product_id, direction, quantity, reason, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ProductID, m.Direction, m.Quantity, m.Reason, m.ActorID)
	return err
}

func (r *repoPG) ListMovements(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movement WHERE product_id = $1`, productID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, product_id, direction, quantity, reason, actor_id, created_at
		FROM stock_movement
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Direction, &m.Quantity, &m.Reason, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CreateAlert(ctx context.Context, a *StockAlert) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Kind == "" {
		a.Kind = AlertKindReorder
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO stock_alert (id, product_id, kind, message)
		VALUES ($1, $2, $3, $4)`,
		a.ID, a.ProductID, a.Kind, a.Message)
	return err
}

func (r *repoPG) HasUnreadAlert(ctx context.Context, productID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stock_alert WHERE product_id = $1 AND NOT read)`,
		productID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListAlerts(ctx context.Context, unreadOnly bool, limit, offset int) ([]*StockAlert, int, error) {
	conn := db.Conn(ctx, r.pool)

	where := ``
	if unreadOnly {
		where = ` WHERE NOT read`
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM stock_alert`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := conn.Query(ctx, `
		SELECT id, product_id, kind, message, read, created_at
		FROM stock_alert`+where+`
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*StockAlert
	for rows.Next() {
		var a StockAlert
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Kind, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) MarkAlertRead(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE stock_alert SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("alert not found")
	}
	return nil
}
