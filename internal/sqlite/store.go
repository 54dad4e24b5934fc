// Package sqlite provides a SQLite-backed storefront store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/sqlite/migrations"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store persists products and orders in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations. Transactions
// take the write lock up front so concurrent checkouts queue on the busy
// timeout instead of failing on lock upgrade.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AddProduct inserts one product and returns it with its id.
func (s *Store) AddProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (orders.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return orders.Product{}, fmt.Errorf("product name is required")
	}
	if price.IsNegative() {
		return orders.Product{}, fmt.Errorf("product price must not be negative")
	}
	if stock < 0 {
		return orders.Product{}, fmt.Errorf("product stock must not be negative")
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO products (name, price, stock) VALUES (?, ?, ?)`,
		name, price.String(), stock,
	)
	if err != nil {
		return orders.Product{}, fmt.Errorf("add product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return orders.Product{}, fmt.Errorf("add product: %w", err)
	}
	return orders.Product{ID: id, Name: name, Price: price, Stock: stock}, nil
}

// ListProducts returns every product in insertion order.
func (s *Store) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, name, price, stock FROM products ORDER BY id`)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// GetProduct returns one product by id.
func (s *Store) GetProduct(ctx context.Context, id int64) (orders.Product, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT id, name, price, stock FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders.Product{}, orders.ErrNotFound
		}
		return orders.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// AdjustStock runs the guarded decrement outside of any transaction.
func (s *Store) AdjustStock(ctx context.Context, id int64, qty int) (bool, error) {
	return adjustStock(ctx, s.sqlDB, id, qty)
}

func adjustStock(ctx context.Context, db execer, id int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, fmt.Errorf("adjust stock %d: quantity %d: %w", id, qty, orders.ErrInvalidQuantity)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		qty, id, qty,
	)
	if err != nil {
		return false, fmt.Errorf("adjust stock %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adjust stock %d: %w", id, err)
	}
	return n == 1, nil
}

// WithTx runs fn inside one SQLite transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&tx{sqlTx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type tx struct {
	sqlTx *sql.Tx
}

func (t *tx) InsertOrder(ctx context.Context, o orders.Order) (int64, error) {
	status := o.Status
	if status == "" {
		status = orders.StatusPending
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO orders (customer_name, total, order_number, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		o.CustomerName, o.Total.String(), o.OrderNumber, string(status), toMillis(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (t *tx) InsertOrderItem(ctx context.Context, it orders.OrderItem) (int64, error) {
	res, err := t.sqlTx.ExecContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity) VALUES (?, ?, ?)`,
		it.OrderID, it.ProductID, it.Quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert order item: %w", err)
	}
	return id, nil
}

func (t *tx) AdjustStock(ctx context.Context, productID int64, qty int) (bool, error) {
	return adjustStock(ctx, t.sqlTx, productID, qty)
}

// GetOrder returns one order header.
func (s *Store) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, customer_name, total, order_number, status, created_at
		   FROM orders
		  WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orders.Order{}, orders.ErrNotFound
		}
		return orders.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// ListOrders returns up to limit orders, newest first.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]orders.Order, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, customer_name, total, order_number, status, created_at
		   FROM orders
		  ORDER BY created_at DESC, id DESC
		  LIMIT ?`, limit)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// OrderLines joins an order's items with the current product rows.
func (s *Store) OrderLines(ctx context.Context, orderID int64) ([]orders.OrderLine, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT p.id, p.name, oi.quantity, p.price
		   FROM order_items oi
		   JOIN products p ON oi.product_id = p.id
		  WHERE oi.order_id = ?
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order lines %d: %w", orderID, err)
	}
	return out, nil
}

// OrderItems returns the raw item rows of one order.
func (s *Store) OrderItems(ctx context.Context, orderID int64) ([]orders.OrderItem, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order items %d: %w", orderID, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (orders.Product, error) {
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

func scanOrder(row scanner) (orders.Order, error) {
	var (
		o         orders.Order
		total     string
		status    string
		createdAt int64
	)
	if err := row.Scan(&o.ID, &o.CustomerName, &total, &o.OrderNumber, &status, &createdAt); err != nil {
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
	o.CreatedAt = fromMillis(createdAt)
	return o, nil
}

var _ orders.Store = (*Store)(nil)
