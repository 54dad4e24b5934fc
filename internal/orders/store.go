package orders

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates a requested product or order is missing.
	ErrNotFound        = errors.New("record not found")
	// ErrInvalidQuantity rejects stock adjustments of zero or fewer units.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Catalog reads and adjusts products.
type Catalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	// AdjustStock decrements stock by qty only when at least qty is available.
	// A qty of zero or less returns ErrInvalidQuantity and leaves stock as is.
	// It reports whether a row changed; insufficient stock is not an error.
	AdjustStock(ctx context.Context, id int64, qty int) (bool, error)
}

// Tx is the write surface available inside Store.WithTx.
type Tx interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderItem(ctx context.Context, it OrderItem) (int64, error)
	AdjustStock(ctx context.Context, productID int64, qty int) (bool, error)
}

// Store is the relational backing of the storefront.
type Store interface {
	Catalog
	AddProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (Product, error)
	// WithTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, limit int) ([]Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]OrderLine, error)
	OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	Close() error
}
