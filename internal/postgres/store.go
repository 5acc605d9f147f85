package postgres

import (
	_ "embed"

	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scenting/mums/internal/orders"
)

//go:embed schema.sql
var schema string

// DB is the subset of pgxpool.Pool the store needs; satisfied by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the durable ledger on Postgres.
type Store struct {
	DB DB
}

// EnsureSchema applies the embedded schema. Idempotent; full migration
// tooling lives outside this service.
func EnsureSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, schema)
	return err
}

func (s *Store) Product(ctx context.Context, id string) (orders.Product, error) {
	var p orders.Product
	err := s.DB.QueryRow(ctx, `
		SELECT id, name, price, category, unitary, stock, created_at, updated_at
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Unitary, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, &orders.ProductNotFoundError{ProductID: id}
	}
	return p, err
}

func (s *Store) Products(ctx context.Context, limit, offset int) ([]orders.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, name, price, category, unitary, stock, created_at, updated_at
		FROM products ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Unitary, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateOrder persists the order and its lines in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o orders.Order) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders (id, complete, created_at) VALUES ($1, $2, $3)`,
		o.ID, o.Complete, o.CreatedAt); err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_products (order_id, product_id, quantity)
			VALUES ($1, $2, $3)`, o.ID, l.ProductID, l.Qty); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Order(ctx context.Context, id string) (orders.Order, error) {
	var o orders.Order
	err := s.DB.QueryRow(ctx, `
		SELECT id, complete, created_at FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.Complete, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT product_id, quantity FROM order_products WHERE order_id = $1`, id)
	if err != nil {
		return orders.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l orders.Line
		if err := rows.Scan(&l.ProductID, &l.Qty); err != nil {
			return orders.Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

// CompleteOrder is the conditional claim deciding the confirm/deadline
// race: exactly one caller sees the pending row.
func (s *Store) CompleteOrder(ctx context.Context, id string) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE orders SET complete = TRUE WHERE id = $1 AND complete = FALSE`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// DeleteOrder removes a still-pending order, cascading to its lines.
// The conditional delete is the claim; losing it is not an error.
func (s *Store) DeleteOrder(ctx context.Context, id string) ([]orders.Line, bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM order_products WHERE order_id = $1`, id)
	if err != nil {
		return nil, false, err
	}
	var lines []orders.Line
	for rows.Next() {
		var l orders.Line
		if err := rows.Scan(&l.ProductID, &l.Qty); err != nil {
			rows.Close()
			return nil, false, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	ct, err := tx.Exec(ctx, `
		DELETE FROM orders WHERE id = $1 AND complete = FALSE`, id)
	if err != nil {
		return nil, false, err
	}
	if ct.RowsAffected() != 1 {
		return nil, false, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return lines, true, nil
}

// DeductStock consolidates a released hold into the committed count.
// Floored at zero: committed stock is never persisted negative.
func (s *Store) DeductStock(ctx context.Context, productID string, qty int) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return &orders.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

// RestockAll resets every product to qty units, scaled by 100 for
// products sold by weight.
func (s *Store) RestockAll(ctx context.Context, qty int) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE products
		SET stock = CASE WHEN unitary THEN $1 ELSE $1 * 100 END, updated_at = now()`, qty)
	return err
}

var _ orders.Store = (*Store)(nil)
