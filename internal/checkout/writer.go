// Package checkout turns a session cart into a persisted order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrCustomerRequired  = errors.New("customer name is required")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	orderNumberMin = 1000
	orderNumberMax = 9999
)

// RandomOrderNumber returns a receipt number in [1000, 9999]. Numbers are not
// unique across orders.
func RandomOrderNumber() string {
	return strconv.Itoa(orderNumberMin + rand.IntN(orderNumberMax-orderNumberMin+1))
}

// Writer places orders. The zero value of the optional fields falls back to
// RandomOrderNumber and time.Now.
type Writer struct {
	Store orders.Store
	// DecrementStock runs the guarded stock decrement for every line.
	DecrementStock bool
	// RejectInsufficientStock aborts the order when a guarded decrement
	// changes no row. When false the order is recorded anyway.
	RejectInsufficientStock bool

	NewOrderNumber func() string
	Now            func() time.Time
}

// Receipt describes a placed order.
type Receipt struct {
	OrderID      int64
	OrderNumber  string
	CustomerName string
	Total        decimal.Decimal
	Status       orders.Status
	CreatedAt    time.Time
	Lines        []cart.Line
	// ShortStock lists products whose decrement found too little stock.
	ShortStock []int64
}

// PlaceOrder writes the order header, one item per cart line and the stock
// decrements in a single transaction. The total uses the prices captured in
// the cart, not the catalog's current prices.
func (w *Writer) PlaceOrder(ctx context.Context, c *cart.Cart, customerName string) (Receipt, error) {
	if c == nil || c.IsEmpty() {
		return Receipt{}, ErrEmptyCart
	}
	customerName = strings.TrimSpace(customerName)
	if customerName == "" {
		return Receipt{}, ErrCustomerRequired
	}

	lines := c.Lines()
	rc := Receipt{
		OrderNumber:  w.orderNumber(),
		CustomerName: customerName,
		Total:        c.Total(),
		Status:       orders.StatusPending,
		CreatedAt:    w.now().UTC(),
		Lines:        lines,
	}

	err := w.Store.WithTx(ctx, func(tx orders.Tx) error {
		id, err := tx.InsertOrder(ctx, orders.Order{
			CustomerName: rc.CustomerName,
			Total:        rc.Total,
			OrderNumber:  rc.OrderNumber,
			Status:       rc.Status,
			CreatedAt:    rc.CreatedAt,
		})
		if err != nil {
			return err
		}
		rc.OrderID = id
		rc.ShortStock = nil

		for _, l := range lines {
			if _, err := tx.InsertOrderItem(ctx, orders.OrderItem{
				OrderID:   id,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
			}); err != nil {
				return err
			}
			if !w.DecrementStock {
				continue
			}
			ok, err := tx.AdjustStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				if w.RejectInsufficientStock {
					return fmt.Errorf("product %d: %w", l.ProductID, ErrInsufficientStock)
				}
				rc.ShortStock = append(rc.ShortStock, l.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("place order: %w", err)
	}

	for _, pid := range rc.ShortStock {
		log.Printf("order %d recorded with insufficient stock for product %d", rc.OrderID, pid)
	}
	return rc, nil
}

func (w *Writer) orderNumber() string {
	if w.NewOrderNumber != nil {
		return w.NewOrderNumber()
	}
	return RandomOrderNumber()
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
