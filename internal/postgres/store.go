package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store persists products and orders in Postgres. Money columns travel as
// text so they round-trip through decimal.Decimal exactly.
type Store struct{ DB *pgxpool.Pool }

func (s *Store) Close() error {
	s.DB.Close()
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) AddProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (orders.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return orders.Product{}, fmt.Errorf("product name is required")
	}
	if price.IsNegative() || stock < 0 {
		return orders.Product{}, fmt.Errorf("product price and stock must not be negative")
	}
	var id int64
	err := s.DB.QueryRow(ctx,
		`INSERT INTO products(name, price, stock) VALUES ($1, $2::text::numeric, $3) RETURNING id`,
		name, price.String(), stock,
	).Scan(&id)
	if err != nil {
		return orders.Product{}, fmt.Errorf("add product: %w", err)
	}
	return orders.Product{ID: id, Name: name, Price: price, Stock: stock}, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, name, price::text, stock FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT id, name, price::text, stock FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) AdjustStock(ctx context.Context, id int64, qty int) (bool, error) {
	return adjustStock(ctx, s.DB, id, qty)
}

// The guard lives in the UPDATE itself; the row lock taken by the statement
// serializes concurrent decrements of one product.
func adjustStock(ctx context.Context, db execer, id int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("adjust stock %d: quantity %d: %w", id, qty, orders.ErrInvalidQuantity)
	}
	ct, err := db.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id=$1 AND stock >= $2`, id, qty)
	if err != nil {
		return false, fmt.Errorf("adjust stock %d: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	pgTx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	if err := fn(&tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type tx struct{ tx pgx.Tx }

func (t *tx) InsertOrder(ctx context.Context, o orders.Order) (int64, error) {
	status := o.Status
	if status == "" {
		status = orders.StatusPending
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(customer_name, total, order_number, status, created_at)
		VALUES ($1, $2::text::numeric, $3, $4, $5)
		RETURNING id
	`, o.CustomerName, o.Total.String(), o.OrderNumber, string(status), createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (t *tx) InsertOrderItem(ctx context.Context, it orders.OrderItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`,
		it.OrderID, it.ProductID, it.Quantity,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

func (t *tx) AdjustStock(ctx context.Context, productID int64, qty int) (bool, error) {
	return adjustStock(ctx, t.tx, productID, qty)
}

func (s *Store) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `
		SELECT id, customer_name, total::text, order_number, status, created_at
		FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, limit int) ([]orders.Order, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.DB.Query(ctx, `
		SELECT id, customer_name, total::text, order_number, status, created_at
		FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) OrderLines(ctx context.Context, orderID int64) ([]orders.OrderLine, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT p.id, p.name, oi.quantity, p.price::text
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order lines %d: %w", orderID, err)
	}
	defer rows.Close()

	var out []orders.OrderLine
	for rows.Next() {
		var (
			l     orders.OrderLine
			price string
		)
		if err := rows.Scan(&l.ProductID, &l.Name, &l.Quantity, &price); err != nil {
			return nil, fmt.Errorf("order lines %d: %w", orderID, err)
		}
		if l.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("order lines %d: price: %w", orderID, err)
		}
		l.Subtotal = l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) OrderItems(ctx context.Context, orderID int64) ([]orders.OrderItem, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("order items %d: %w", orderID, err)
	}
	defer rows.Close()

	var out []orders.OrderItem
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("order items %d: %w", orderID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock); err != nil {
		return orders.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Product{}, fmt.Errorf("product %d price: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.CustomerName, &total, &o.OrderNumber, &status, &o.CreatedAt); err != nil {
		return orders.Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return orders.Order{}, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	st, err := orders.ParseStatus(status)
	if err != nil {
		return orders.Order{}, err
	}
	o.Total = d
	o.Status = st
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

var _ orders.Store = (*Store)(nil)
