package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/somba-market/commerce/internal/domain/product"
)

// ProductRepository persists the inventory ledger. Optimistic concurrency
// is a conditional UPDATE on the version column: zero rows affected means
// another writer won the race.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, title, price, currency, status, stock, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SellerID, p.Title, p.Price, p.Currency, p.Status, p.Stock, p.Version,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, seller_id, title, price, currency, status, stock, version, created_at, updated_at
		FROM products WHERE id = ?`, id)
	return scanProduct(row)
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET seller_id = ?, title = ?, price = ?, currency = ?, status = ?, stock = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.SellerID, p.Title, p.Price, p.Currency, p.Status, p.Stock,
		p.UpdatedAt, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := r.Get(ctx, p.ID); errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}

	p.Version++
	return nil
}

func (r *ProductRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, title, price, currency, status, stock, version, created_at, updated_at
		FROM products WHERE seller_id = ?`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("query products by seller: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

func (r *ProductRepository) ListOutOfStock(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seller_id, title, price, currency, status, stock, version, created_at, updated_at
		FROM products WHERE stock <= 0`)
	if err != nil {
		return nil, fmt.Errorf("query out-of-stock products: %w", err)
	}
	defer rows.Close()
	return collectProducts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Title, &p.Price, &p.Currency, &p.Status,
		&p.Stock, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}

func collectProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
