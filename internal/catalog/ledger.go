package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger owns size-level stock counters. Every mutation recomputes the owning
// product's count_in_stock as the sum of its size stocks.
type Ledger struct{ DB *pgxpool.Pool }

// Reserve locks the size row, checks availability and decrements stock inside
// the caller's transaction. The returned snapshot carries price and variant
// text frozen at reservation time.
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, sizeID string, qty int) (Reservation, error) {
	var res Reservation
	var stock int
	err := tx.QueryRow(ctx, `
		SELECT s.id, s.label, s.stock, s.price, v.id, v.color, p.id, p.name
		FROM sizes s
		JOIN variants v ON v.id = s.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE s.id = $1
		FOR UPDATE OF s`, sizeID).
		Scan(&res.SizeID, &res.SizeLabel, &stock, &res.UnitPrice,
			&res.VariantID, &res.VariantColor, &res.ProductID, &res.ProductName)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrSizeNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	if stock < qty {
		return Reservation{}, &InsufficientStockError{
			SizeID: res.SizeID, SizeLabel: res.SizeLabel, Requested: qty, Available: stock,
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE sizes SET stock = stock - $2 WHERE id = $1`, sizeID, qty); err != nil {
		return Reservation{}, err
	}
	if err := l.recount(ctx, tx, res.ProductID); err != nil {
		return Reservation{}, err
	}
	res.Qty = qty
	return res, nil
}

// ReleaseSizes is the precise inverse of Reserve: restores each size by
// exactly the reserved quantity. Used by cancellation compensation.
func (l *Ledger) ReleaseSizes(ctx context.Context, tx pgx.Tx, items []SizeQty) error {
	touched := map[string]bool{}
	for _, it := range items {
		var productID string
		err := tx.QueryRow(ctx, `
			SELECT v.product_id FROM sizes s
			JOIN variants v ON v.id = s.variant_id
			WHERE s.id = $1`, it.SizeID).Scan(&productID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSizeNotFound
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE sizes SET stock = stock + $2 WHERE id = $1`, it.SizeID, it.Qty); err != nil {
			return err
		}
		touched[productID] = true
	}
	for id := range touched {
		if err := l.recount(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// ReturnVariant is the admin return path: the variant is resolved by display
// color (exact, then case-insensitive, then substring). With a size label the
// named size is restored; without one every size of the variant is.
func (l *Ledger) ReturnVariant(ctx context.Context, productID, color, sizeLabel string, qty int) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists string
	err = tx.QueryRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `SELECT id, product_id, color FROM variants WHERE product_id = $1`, productID)
	if err != nil {
		return err
	}
	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Color); err != nil {
			rows.Close()
			return err
		}
		variants = append(variants, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	variant, err := MatchVariant(variants, color)
	if err != nil {
		return err
	}

	if sizeLabel != "" {
		ct, err := tx.Exec(ctx, `UPDATE sizes SET stock = stock + $3 WHERE variant_id = $1 AND label = $2`,
			variant.ID, sizeLabel, qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrSizeNotFound
		}
	} else {
		if _, err := tx.Exec(ctx, `UPDATE sizes SET stock = stock + $2 WHERE variant_id = $1`, variant.ID, qty); err != nil {
			return err
		}
	}

	if err := l.recount(ctx, tx, productID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *Ledger) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := l.DB.Query(ctx, `
		SELECT id, name, count_in_stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CountInStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *Ledger) recount(ctx context.Context, tx pgx.Tx, productID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE products SET count_in_stock = (
			SELECT COALESCE(SUM(s.stock), 0)
			FROM sizes s JOIN variants v ON v.id = s.variant_id
			WHERE v.product_id = $1
		), updated_at = now()
		WHERE id = $1`, productID)
	return err
}
