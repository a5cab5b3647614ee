package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
	"github.com/fizennn/serverTest-sub000/internal/payment"
	"github.com/fizennn/serverTest-sub000/internal/voucher"
)

type Repo struct {
	DB       *pgxpool.Pool
	Catalog  *catalog.Ledger
	Vouchers *voucher.Repo
}

// Create assembles a priced, stock-reserved order in one transaction: address
// lookup, per-line reservation, voucher redemption, totals, persist. Any
// voucher rejection or stock shortfall aborts the transaction, rolling back
// every reservation made earlier in the same request.
// Idempotent via optional external_id: a repeated id returns the existing
// order (existed=true) without touching stock again.
func (r *Repo) Create(ctx context.Context, in CreateInput) (*Order, bool, error) {
	if err := validateCreate(in); err != nil {
		return nil, false, err
	}

	if in.ExternalID != "" {
		var id string
		err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE external_id = $1`, in.ExternalID).Scan(&id)
		if err == nil {
			o, err := r.Get(ctx, id)
			return o, true, err
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, err
		}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		AtStore:       in.AtStore,
		PaymentMethod: in.PaymentMethod,
		Status:        StatusPending,
		PaymentStatus: payment.StateUnpaid,
		Note:          in.Note,
	}

	err = tx.QueryRow(ctx, `SELECT receiver, phone, detail FROM addresses WHERE id = $1 AND user_id = $2`,
		in.AddressID, in.UserID).Scan(&o.Receiver, &o.Phone, &o.Address)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, ErrAddressNotFound
	}
	if err != nil {
		return nil, false, err
	}

	for _, line := range in.Items {
		res, err := r.Catalog.Reserve(ctx, tx, line.SizeID, line.Quantity)
		if err != nil {
			return nil, false, err
		}
		o.Subtotal += res.UnitPrice * int64(line.Quantity)
		o.Items = append(o.Items, OrderItem{
			ID:           uuid.NewString(),
			ProductID:    res.ProductID,
			VariantID:    res.VariantID,
			SizeID:       res.SizeID,
			ProductName:  res.ProductName,
			VariantColor: res.VariantColor,
			SizeLabel:    res.SizeLabel,
			Qty:          line.Quantity,
			UnitPrice:    res.UnitPrice,
		})
	}

	if in.AtStore {
		o.ShipCost = 0
		if in.StoreAddress != "" {
			o.Address = in.StoreAddress
		}
	} else {
		o.ShipCost = in.ShipCost
	}

	now := time.Now()
	for _, vid := range in.Vouchers {
		red, d, err := r.Vouchers.Redeem(ctx, tx, vid, in.UserID, o.Subtotal, o.ShipCost, now)
		if err != nil {
			return nil, false, fmt.Errorf("voucher %s: %w", vid, err)
		}
		o.ItemDiscount += d.Item
		o.ShipDiscount += d.Ship
		o.Vouchers = append(o.Vouchers, red)
	}
	o.ItemDiscount, o.ShipDiscount = ClampDiscounts(o.Subtotal, o.ShipCost, o.ItemDiscount, o.ShipDiscount)
	o.Total = ComputeTotal(o.Subtotal, o.ItemDiscount, o.ShipCost, o.ShipDiscount)

	externalID := any(nil)
	if in.ExternalID != "" {
		externalID = in.ExternalID
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, external_id, user_id, receiver, phone, address, at_store,
			payment_method, subtotal, item_discount, ship_discount, ship_cost, total,
			status, payment_status, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING order_code, created_at, updated_at`,
		o.ID, externalID, o.UserID, o.Receiver, o.Phone, o.Address, o.AtStore,
		o.PaymentMethod, o.Subtotal, o.ItemDiscount, o.ShipDiscount, o.ShipCost, o.Total,
		o.Status, o.PaymentStatus, o.Note).
		Scan(&o.OrderCode, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		// two concurrent creates with the same external_id can both pass the
		// pre-check; the loser lands here and returns the winner's order
		if isExternalIDConflict(err) {
			_ = tx.Rollback(ctx)
			var id string
			if qerr := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE external_id = $1`, in.ExternalID).Scan(&id); qerr == nil {
				existing, gerr := r.Get(ctx, id)
				return existing, true, gerr
			}
		}
		return nil, false, err
	}

	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, variant_id, size_id,
				product_name, variant_color, size_label, qty, unit_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, o.ID, it.ProductID, it.VariantID, it.SizeID,
			it.ProductName, it.VariantColor, it.SizeLabel, it.Qty, it.UnitPrice)
		if err != nil {
			return nil, false, err
		}
	}
	for _, red := range o.Vouchers {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_vouchers(order_id, voucher_id, kind, amount)
			VALUES ($1,$2,$3,$4)`, o.ID, red.VoucherID, red.Kind, red.Amount)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return o, false, nil
}

// isExternalIDConflict matches the unique violation raised when concurrent
// creates race on the same external_id.
func isExternalIDConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" &&
		pgErr.ConstraintName == "orders_external_id_key"
}

func validateCreate(in CreateInput) error {
	if in.UserID == "" || in.AddressID == "" {
		return fmt.Errorf("%w: missing user or address", ErrInvalidInput)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidInput)
	}
	for _, it := range in.Items {
		if it.SizeID == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: bad quantity for size %s", ErrInvalidInput, it.SizeID)
		}
	}
	switch in.PaymentMethod {
	case MethodCOD, MethodTransfer, MethodCard:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.PaymentMethod)
	}
	if in.ShipCost < 0 {
		return fmt.Errorf("%w: negative ship cost", ErrInvalidInput)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	o := &Order{}
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, order_code, receiver, phone, address, at_store, payment_method,
			subtotal, item_discount, ship_discount, ship_cost, total, status, payment_status,
			COALESCE(note, ''), created_at, updated_at
		FROM orders WHERE id = $1`, orderID).
		Scan(&o.ID, &o.UserID, &o.OrderCode, &o.Receiver, &o.Phone, &o.Address, &o.AtStore,
			&o.PaymentMethod, &o.Subtotal, &o.ItemDiscount, &o.ShipDiscount, &o.ShipCost,
			&o.Total, &o.Status, &o.PaymentStatus, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, variant_id, size_id, product_name, variant_color, size_label, qty, unit_price
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.SizeID,
			&it.ProductName, &it.VariantColor, &it.SizeLabel, &it.Qty, &it.UnitPrice); err != nil {
			rows.Close()
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := r.DB.Query(ctx, `SELECT voucher_id, kind, amount FROM order_vouchers WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var red voucher.Redemption
		if err := vrows.Scan(&red.VoucherID, &red.Kind, &red.Amount); err != nil {
			return nil, err
		}
		o.Vouchers = append(o.Vouchers, red)
	}
	return o, vrows.Err()
}

// Cancel moves an order to cancelled when its lifecycle allows it and returns
// the size quantities the compensation worker must restore.
func (r *Repo) Cancel(ctx context.Context, orderID string) (*Order, []catalog.SizeQty, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	var status Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !CanTransition(status, StatusCancelled) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, StatusCancelled)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, StatusCancelled); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, `SELECT size_id, qty FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, nil, err
	}
	var items []catalog.SizeQty
	for rows.Next() {
		var sq catalog.SizeQty
		if err := rows.Scan(&sq.SizeID, &sq.Qty); err != nil {
			rows.Close()
			return nil, nil, err
		}
		items = append(items, sq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	o, err := r.Get(ctx, orderID)
	return o, items, err
}

// UpdateStatus applies an admin lifecycle move, validated by the transition map.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, to Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, to); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SetStorePickup reworks shipping terms: store pickup zeroes ship cost and
// ship discount and the total shrinks by the old (shipCost - shipDiscount).
func (r *Repo) SetStorePickup(ctx context.Context, orderID string) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var subtotal, itemDiscount int64
	var atStore bool
	err = tx.QueryRow(ctx, `SELECT subtotal, item_discount, at_store FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&subtotal, &itemDiscount, &atStore)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if !atStore {
		total := ComputeTotal(subtotal, itemDiscount, 0, 0)
		if _, err := tx.Exec(ctx, `
			UPDATE orders SET at_store = TRUE, ship_cost = 0, ship_discount = 0,
				total = $2, updated_at = now()
			WHERE id = $1`, orderID, total); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.Get(ctx, orderID)
}

// PaymentStatus returns the current payment state of an order.
func (r *Repo) PaymentStatus(ctx context.Context, orderID string) (payment.State, error) {
	var s payment.State
	err := r.DB.QueryRow(ctx, `SELECT payment_status FROM orders WHERE id = $1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	return s, err
}

// ResolveByCode maps the transfer gateway's numeric order code to an order.
func (r *Repo) ResolveByCode(ctx context.Context, orderCode int64) (string, payment.State, error) {
	var id string
	var s payment.State
	err := r.DB.QueryRow(ctx, `SELECT id, payment_status FROM orders WHERE order_code = $1`, orderCode).Scan(&id, &s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrOrderNotFound
	}
	return id, s, err
}

// SetPaymentStatus applies a payment transition guarded by the expected
// current state, so replayed or out-of-order gateway events cannot re-apply
// it. Returns false when the guard did not match.
func (r *Repo) SetPaymentStatus(ctx context.Context, orderID string, from, to payment.State) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_status = $3, updated_at = now()
		WHERE id = $1 AND payment_status = $2`, orderID, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// Compensate reverses a cancelled order's effects in one transaction: every
// line's stock back to the exact sizes, every applied voucher's redemption
// back to its pool. The compensated_at mark makes a second run a no-op.
func (r *Repo) Compensate(ctx context.Context, orderID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var status Status
	var compensatedAt *time.Time
	err = tx.QueryRow(ctx, `SELECT status, compensated_at FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&status, &compensatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if status != StatusCancelled {
		return fmt.Errorf("order %s is %s, not cancelled", orderID, status)
	}
	if compensatedAt != nil {
		return nil // already compensated
	}

	rows, err := tx.Query(ctx, `SELECT size_id, qty FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return err
	}
	var items []catalog.SizeQty
	for rows.Next() {
		var sq catalog.SizeQty
		if err := rows.Scan(&sq.SizeID, &sq.Qty); err != nil {
			rows.Close()
			return err
		}
		items = append(items, sq)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if err := r.Catalog.ReleaseSizes(ctx, tx, items); err != nil {
		return err
	}

	vrows, err := tx.Query(ctx, `SELECT voucher_id FROM order_vouchers WHERE order_id = $1`, orderID)
	if err != nil {
		return err
	}
	var voucherIDs []string
	for vrows.Next() {
		var id string
		if err := vrows.Scan(&id); err != nil {
			vrows.Close()
			return err
		}
		voucherIDs = append(voucherIDs, id)
	}
	vrows.Close()
	if err := vrows.Err(); err != nil {
		return err
	}
	for _, vid := range voucherIDs {
		if err := r.Vouchers.Restore(ctx, tx, vid); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET compensated_at = now() WHERE id = $1`, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
