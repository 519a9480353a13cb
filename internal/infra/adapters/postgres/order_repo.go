package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

const orderColumns = `id, order_id, user_id, subtotal, discount_code_id, discount_amount, total,
	status, gateway_authority, gateway_txn_id, created_at, paid_at`

type orderRepo struct{ repos }

func (r orderRepo) Create(ctx context.Context, o *entity.Order) error {
	const q = `
		INSERT INTO orders (order_id, user_id, subtotal, discount_code_id, discount_amount, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.q.QueryRowContext(ctx, q,
		o.OrderID, o.UserID, o.Subtotal, o.DiscountCodeID, o.DiscountAmount, o.Total, o.Status).
		Scan(&o.ID, &o.CreatedAt)
}

func (r orderRepo) CreateItem(ctx context.Context, item *entity.OrderItem) error {
	const q = `
		INSERT INTO order_items (order_id, item_kind, item_id, description, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return r.q.QueryRowContext(ctx, q,
		item.OrderID, item.Ref.Kind, item.Ref.ID, item.Description, item.Price).
		Scan(&item.ID)
}

func (r orderRepo) Items(ctx context.Context, orderID int64) ([]entity.OrderItem, error) {
	const q = `SELECT id, order_id, item_kind, item_id, description, price
		FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var out []entity.OrderItem
	for rows.Next() {
		var oi entity.OrderItem
		if err := rows.Scan(&oi.ID, &oi.OrderID, &oi.Ref.Kind, &oi.Ref.ID, &oi.Description, &oi.Price); err != nil {
			return nil, err
		}
		out = append(out, oi)
	}
	return out, rows.Err()
}

func (r orderRepo) ByOrderID(ctx context.Context, userID int64, orderID uuid.UUID) (*entity.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND order_id = $2`
	o, err := scanOrder(r.q.QueryRowContext(ctx, q, userID, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return o, err
}

func (r orderRepo) GetForUpdate(ctx context.Context, id int64) (*entity.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	o, err := scanOrder(r.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return o, err
}

func (r orderRepo) Update(ctx context.Context, o *entity.Order) error {
	const q = `
		UPDATE orders
		SET status = $2, gateway_authority = $3, gateway_txn_id = $4, paid_at = $5
		WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, o.ID, o.Status, o.GatewayAuthority, o.GatewayTxnID, o.PaidAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r orderRepo) ListByUser(ctx context.Context, userID int64) ([]entity.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY id DESC`
	rows, err := r.q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r orderRepo) FindByAuthority(ctx context.Context, authority string) (*entity.Order, error) {
	if authority == "" {
		return nil, nil
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_authority = $1`
	o, err := scanOrder(r.q.QueryRowContext(ctx, q, authority))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r orderRepo) HasUnpaidForItem(ctx context.Context, userID int64, ref entity.ItemRef) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.item_kind = $2 AND oi.item_id = $3
			  AND o.status IN ('pending_payment', 'awaiting_gateway_redirect', 'payment_failed')
		)`
	var exists bool
	err := r.q.QueryRowContext(ctx, q, userID, ref.Kind, ref.ID).Scan(&exists)
	return exists, err
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var o entity.Order
	err := row.Scan(&o.ID, &o.OrderID, &o.UserID, &o.Subtotal, &o.DiscountCodeID, &o.DiscountAmount,
		&o.Total, &o.Status, &o.GatewayAuthority, &o.GatewayTxnID, &o.CreatedAt, &o.PaidAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
