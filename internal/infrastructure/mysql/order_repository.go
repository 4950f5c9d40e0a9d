package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/somba-market/commerce/internal/domain/order"
)

// OrderRepository persists orders with items and the delivery address as
// JSON columns. Orders are append-mostly; only the two status axes and
// the reservation marker change after creation, so a whole-row UPDATE
// stays cheap.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	items, address, err := encodeOrder(o)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, currency, delivery_address, notes, items, fulfillment_status,
		                    payment_status, total, stock_reserved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Currency, address, o.Notes, items, o.FulfillmentStatus,
		o.PaymentStatus, o.Total, o.StockReserved, o.CreatedAt, o.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, orderSelect+` WHERE id = ?`, id)
	return scanOrder(row)
}

func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) error {
	items, address, err := encodeOrder(o)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET currency = ?, delivery_address = ?, notes = ?, items = ?, fulfillment_status = ?,
		    payment_status = ?, total = ?, stock_reserved = ?, updated_at = ?
		WHERE id = ?`,
		o.Currency, address, o.Notes, items, o.FulfillmentStatus,
		o.PaymentStatus, o.Total, o.StockReserved, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, getErr := r.Get(ctx, o.ID); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
	}
	return nil
}

// ClearStockReserved flips the marker with a conditional UPDATE so only
// one of several concurrent settlers wins the release.
func (r *OrderRepository) ClearStockReserved(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET stock_reserved = FALSE, updated_at = ?
		WHERE id = ? AND stock_reserved = TRUE`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("clear order reservation: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
			return false, domain.ErrNotFound
		}
		return false, nil
	}
	return true, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE user_id = ?`, userID)
}

func (r *OrderRepository) ListByFulfillment(ctx context.Context, status domain.FulfillmentStatus) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE fulfillment_status = ?`, status)
}

func (r *OrderRepository) ListByPayment(ctx context.Context, status domain.PaymentStatus) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE payment_status = ?`, status)
}

const orderSelect = `
	SELECT id, user_id, currency, delivery_address, notes, items, fulfillment_status,
	       payment_status, total, stock_reserved, created_at, updated_at
	FROM orders`

func (r *OrderRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func encodeOrder(o *domain.Order) (items []byte, address []byte, err error) {
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, fmt.Errorf("encode order items: %w", err)
	}
	if address, err = json.Marshal(o.DeliveryAddress); err != nil {
		return nil, nil, fmt.Errorf("encode delivery address: %w", err)
	}
	return items, address, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o       domain.Order
		items   []byte
		address []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.Currency, &address, &o.Notes, &items,
		&o.FulfillmentStatus, &o.PaymentStatus, &o.Total, &o.StockReserved,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("decode delivery address: %w", err)
	}
	return &o, nil
}
