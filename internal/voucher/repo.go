package voucher

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	err := row.Scan(&v.ID, &v.Kind, &v.DiscountPct, &v.MinSubtotal, &v.Cap,
		&v.MaxRedemptions, &v.RedemptionStock, &v.StartsAt, &v.EndsAt, &v.Disabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return Voucher{}, ErrNotFound
	}
	return v, err
}

const voucherCols = `id, kind, discount_pct, min_subtotal, cap, max_redemptions, redemption_stock, starts_at, ends_at, disabled`

func getVoucher(ctx context.Context, q rowQuerier, id string, lock bool) (Voucher, error) {
	sql := `SELECT ` + voucherCols + ` FROM vouchers WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	return scanVoucher(q.QueryRow(ctx, sql, id))
}

func isMember(ctx context.Context, q rowQuerier, voucherID, userID string) (bool, error) {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM voucher_users WHERE voucher_id = $1 AND user_id = $2`,
		voucherID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Grant adds a user to the allowlist. The allowlist size is derived and capped
// by the voucher's total capacity; granting does not consume redemption stock.
func (r *Repo) Grant(ctx context.Context, voucherID, userID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	v, err := getVoucher(ctx, tx, voucherID, true)
	if err != nil {
		return err
	}
	if v.Disabled {
		return ErrDisabled
	}
	now := time.Now()
	if now.Before(v.StartsAt) || now.After(v.EndsAt) {
		return ErrOutsideWindow
	}
	member, err := isMember(ctx, tx, voucherID, userID)
	if err != nil {
		return err
	}
	if member {
		return ErrAlreadyGranted
	}
	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM voucher_users WHERE voucher_id = $1`, voucherID).Scan(&count); err != nil {
		return err
	}
	if count >= v.MaxRedemptions {
		return ErrAllowlistFull
	}
	if _, err := tx.Exec(ctx, `INSERT INTO voucher_users(voucher_id, user_id) VALUES ($1, $2)`, voucherID, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Revoke removes a user from the allowlist.
func (r *Repo) Revoke(ctx context.Context, voucherID, userID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM voucher_users WHERE voucher_id = $1 AND user_id = $2`, voucherID, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotGranted
	}
	return nil
}

// Redeem prices one voucher inside the caller's checkout transaction and
// consumes one redemption. The row lock serializes concurrent redemptions of
// the same voucher, so the stock check cannot be raced past zero.
func (r *Repo) Redeem(ctx context.Context, tx pgx.Tx, voucherID, userID string, subtotal, shipCost int64, now time.Time) (Redemption, Discount, error) {
	v, err := getVoucher(ctx, tx, voucherID, true)
	if err != nil {
		return Redemption{}, Discount{}, err
	}
	member, err := isMember(ctx, tx, voucherID, userID)
	if err != nil {
		return Redemption{}, Discount{}, err
	}
	d, err := Evaluate(v, member, subtotal, shipCost, now)
	if err != nil {
		return Redemption{}, Discount{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE vouchers SET redemption_stock = redemption_stock - 1 WHERE id = $1`, voucherID); err != nil {
		return Redemption{}, Discount{}, err
	}
	return Redemption{VoucherID: v.ID, Kind: v.Kind, Amount: d.Amount()}, d, nil
}

// Restore returns one redemption on cancellation, never past capacity.
func (r *Repo) Restore(ctx context.Context, tx pgx.Tx, voucherID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE vouchers
		SET redemption_stock = LEAST(redemption_stock + 1, max_redemptions)
		WHERE id = $1`, voucherID)
	return err
}

// Check is the read-only pre-checkout preview: same rules as Redeem, no lock,
// no stock movement.
func (r *Repo) Check(ctx context.Context, voucherID, userID string, subtotal, shipCost int64) (Discount, error) {
	v, err := getVoucher(ctx, r.DB, voucherID, false)
	if err != nil {
		return Discount{}, err
	}
	member, err := isMember(ctx, r.DB, voucherID, userID)
	if err != nil {
		return Discount{}, err
	}
	return Evaluate(v, member, subtotal, shipCost, time.Now())
}
