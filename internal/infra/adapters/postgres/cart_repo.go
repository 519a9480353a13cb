package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

const cartItemColumns = `id, cart_id, item_kind, item_id, status, reserved_order_id, reserved_order_item_id, added_at`

type cartRepo struct{ repos }

func (r cartRepo) GetOrCreate(ctx context.Context, userID int64) (*entity.Cart, error) {
	// The no-op DO UPDATE makes RETURNING yield the existing row.
	const q = `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, discount_code_id, created_at`
	var c entity.Cart
	err := r.q.QueryRowContext(ctx, q, userID).
		Scan(&c.ID, &c.UserID, &c.DiscountCodeID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return &c, nil
}

func (r cartRepo) SetDiscount(ctx context.Context, cartID int64, codeID *int64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE carts SET discount_code_id = $2 WHERE id = $1`, cartID, codeID)
	return err
}

func (r cartRepo) Items(ctx context.Context, cartID int64) ([]entity.CartItem, error) {
	q := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY id`
	return r.queryItems(ctx, q, cartID)
}

func (r cartRepo) ItemsForUpdate(ctx context.Context, cartID int64, ids []int64) ([]entity.CartItem, error) {
	if ids == nil {
		q := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY id FOR UPDATE`
		return r.queryItems(ctx, q, cartID)
	}
	q := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`
	return r.queryItems(ctx, q, cartID, pq.Array(ids))
}

func (r cartRepo) queryItems(ctx context.Context, q string, args ...any) ([]entity.CartItem, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var out []entity.CartItem
	for rows.Next() {
		ci, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ci)
	}
	return out, rows.Err()
}

func (r cartRepo) GetItem(ctx context.Context, cartID, itemID int64) (*entity.CartItem, error) {
	q := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND id = $2`
	ci, err := scanCartItem(r.q.QueryRowContext(ctx, q, cartID, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return ci, err
}

func (r cartRepo) FindItem(ctx context.Context, cartID int64, ref entity.ItemRef) (*entity.CartItem, error) {
	q := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND item_kind = $2 AND item_id = $3`
	ci, err := scanCartItem(r.q.QueryRowContext(ctx, q, cartID, ref.Kind, ref.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ci, err
}

func (r cartRepo) AddItem(ctx context.Context, item *entity.CartItem) error {
	const q = `
		INSERT INTO cart_items (cart_id, item_kind, item_id, status, added_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return r.q.QueryRowContext(ctx, q,
		item.CartID, item.Ref.Kind, item.Ref.ID, item.Status, item.AddedAt).
		Scan(&item.ID)
}

func (r cartRepo) UpdateItem(ctx context.Context, item *entity.CartItem) error {
	const q = `
		UPDATE cart_items
		SET status = $2, reserved_order_id = $3, reserved_order_item_id = $4
		WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, item.ID, item.Status, item.ReservedOrderID, item.ReservedOrderItemID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r cartRepo) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	return err
}

func (r cartRepo) ItemsReservedBy(ctx context.Context, orderID int64) ([]entity.CartItem, error) {
	q := `SELECT ` + cartItemColumns + ` FROM cart_items
		WHERE reserved_order_id = (SELECT order_id FROM orders WHERE id = $1) ORDER BY id`
	return r.queryItems(ctx, q, orderID)
}

func (r cartRepo) DeleteItemsReservedBy(ctx context.Context, orderID int64) error {
	const q = `DELETE FROM cart_items
		WHERE reserved_order_id = (SELECT order_id FROM orders WHERE id = $1)`
	_, err := r.q.ExecContext(ctx, q, orderID)
	return err
}

func (r cartRepo) ClearItems(ctx context.Context, cartID int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartItem(row rowScanner) (*entity.CartItem, error) {
	var ci entity.CartItem
	err := row.Scan(&ci.ID, &ci.CartID, &ci.Ref.Kind, &ci.Ref.ID,
		&ci.Status, &ci.ReservedOrderID, &ci.ReservedOrderItemID, &ci.AddedAt)
	if err != nil {
		return nil, err
	}
	return &ci, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}
