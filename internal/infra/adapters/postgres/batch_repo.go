package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

const batchColumns = `id, batch_id, user_id, total, status, gateway_authority, gateway_txn_id, created_at, paid_at`

type batchRepo struct{ repos }

func (r batchRepo) Create(ctx context.Context, b *entity.PaymentBatch, memberOrderIDs []int64) error {
	const q = `
		INSERT INTO payment_batches (batch_id, user_id, total, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.q.QueryRowContext(ctx, q, b.BatchID, b.UserID, b.Total, b.Status).
		Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	for _, orderID := range memberOrderIDs {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO batch_orders (batch_id, order_id) VALUES ($1, $2)`, b.ID, orderID)
		if err != nil {
			return fmt.Errorf("insert batch member: %w", err)
		}
	}
	return nil
}

func (r batchRepo) GetForUpdate(ctx context.Context, id int64) (*entity.PaymentBatch, error) {
	q := `SELECT ` + batchColumns + ` FROM payment_batches WHERE id = $1 FOR UPDATE`
	b, err := scanBatch(r.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return b, err
}

func (r batchRepo) Update(ctx context.Context, b *entity.PaymentBatch) error {
	const q = `
		UPDATE payment_batches
		SET status = $2, gateway_authority = $3, gateway_txn_id = $4, paid_at = $5
		WHERE id = $1`
	res, err := r.q.ExecContext(ctx, q, b.ID, b.Status, b.GatewayAuthority, b.GatewayTxnID, b.PaidAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r batchRepo) FindByAuthority(ctx context.Context, authority string) (*entity.PaymentBatch, error) {
	if authority == "" {
		return nil, nil
	}
	q := `SELECT ` + batchColumns + ` FROM payment_batches WHERE gateway_authority = $1`
	b, err := scanBatch(r.q.QueryRowContext(ctx, q, authority))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r batchRepo) MemberOrderIDs(ctx context.Context, batchID int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT order_id FROM batch_orders WHERE batch_id = $1 ORDER BY order_id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch members: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r batchRepo) FindActiveForOrder(ctx context.Context, orderID int64) (*entity.PaymentBatch, error) {
	q := `SELECT ` + batchColumns + ` FROM payment_batches
		WHERE id IN (SELECT batch_id FROM batch_orders WHERE order_id = $1)
		  AND status IN ('awaiting_gateway_redirect', 'verified', 'completed')
		LIMIT 1`
	b, err := scanBatch(r.q.QueryRowContext(ctx, q, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func scanBatch(row rowScanner) (*entity.PaymentBatch, error) {
	var b entity.PaymentBatch
	err := row.Scan(&b.ID, &b.BatchID, &b.UserID, &b.Total, &b.Status,
		&b.GatewayAuthority, &b.GatewayTxnID, &b.CreatedAt, &b.PaidAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
