package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sharifevents/shop-service/internal/core/domain/entity"
	"github.com/sharifevents/shop-service/internal/core/ports"
)

const discountColumns = `id, code, active, percent, amount, valid_from, valid_to,
	min_order_amount, max_uses, times_used, max_uses_per_user, target_kind, target_id, created_at`

type discountRepo struct{ repos }

func (r discountRepo) FindByCode(ctx context.Context, code string) (*entity.DiscountCode, error) {
	q := `SELECT ` + discountColumns + ` FROM discount_codes WHERE lower(code) = lower($1)`
	dc, err := scanDiscount(r.q.QueryRowContext(ctx, q, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return dc, err
}

func (r discountRepo) Get(ctx context.Context, id int64) (*entity.DiscountCode, error) {
	q := `SELECT ` + discountColumns + ` FROM discount_codes WHERE id = $1`
	dc, err := scanDiscount(r.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	return dc, err
}

func (r discountRepo) IncrementUsage(ctx context.Context, codeID int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE discount_codes SET times_used = times_used + 1 WHERE id = $1`, codeID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r discountRepo) RedemptionCount(ctx context.Context, codeID, userID int64) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*) FROM discount_redemptions WHERE code_id = $1 AND user_id = $2`,
		codeID, userID).Scan(&n)
	return n, err
}

func (r discountRepo) Redeem(ctx context.Context, codeID, userID, orderID int64) (bool, error) {
	const q = `
		INSERT INTO discount_redemptions (code_id, user_id, order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	res, err := r.q.ExecContext(ctx, q, codeID, userID, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanDiscount(row rowScanner) (*entity.DiscountCode, error) {
	var (
		dc         entity.DiscountCode
		targetKind sql.NullString
		targetID   sql.NullInt64
	)
	err := row.Scan(&dc.ID, &dc.Code, &dc.Active, &dc.Percent, &dc.Amount,
		&dc.ValidFrom, &dc.ValidTo, &dc.MinOrderAmount, &dc.MaxUses, &dc.TimesUsed,
		&dc.MaxUsesPerUser, &targetKind, &targetID, &dc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if targetKind.Valid && targetID.Valid {
		dc.Target = &entity.ItemRef{Kind: entity.ItemKind(targetKind.String), ID: targetID.Int64}
	}
	return &dc, nil
}
