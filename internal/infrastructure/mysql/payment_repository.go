package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	domain "github.com/somba-market/commerce/internal/domain/payment"
)

const mysqlErrDuplicateEntry = 1062

// PaymentRepository persists payment attempts. Reference uniqueness is a
// unique index on transaction_reference, surfaced as
// ErrDuplicateReference so the service can regenerate.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, user_id, amount, currency, method, status,
		                      transaction_reference, provider_payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.UserID, p.Amount, p.Currency, p.Method, p.Status,
		p.TransactionReference, p.ProviderPayload, p.CreatedAt, p.UpdatedAt,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, paymentSelect+` WHERE id = ?`, id)
	return scanPayment(row)
}

func (r *PaymentRepository) Update(ctx context.Context, p *domain.Payment) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = ?, transaction_reference = ?, provider_payload = ?, updated_at = ?
		WHERE id = ?`,
		p.Status, p.TransactionReference, p.ProviderPayload, p.UpdatedAt, p.ID,
	)
	if isDuplicateKey(err) {
		return domain.ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, getErr := r.Get(ctx, p.ID); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context) ([]*domain.Payment, error) {
	return r.query(ctx, paymentSelect)
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Payment, error) {
	return r.query(ctx, paymentSelect+` WHERE order_id = ?`, orderID)
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Payment, error) {
	return r.query(ctx, paymentSelect+` WHERE user_id = ?`, userID)
}

func (r *PaymentRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Payment, error) {
	return r.query(ctx, paymentSelect+` WHERE status = ?`, status)
}

func (r *PaymentRepository) HasSuccess(ctx context.Context, orderID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM payments WHERE order_id = ? AND status = ?`,
		orderID, domain.StatusSucceeded,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query successful payments: %w", err)
	}
	return n > 0, nil
}

const paymentSelect = `
	SELECT id, order_id, user_id, amount, currency, method, status,
	       transaction_reference, provider_payload, created_at, updated_at
	FROM payments`

func (r *PaymentRepository) query(ctx context.Context, q string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Currency, &p.Method,
		&p.Status, &p.TransactionReference, &p.ProviderPayload, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &p, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
