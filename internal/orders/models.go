package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type Order struct {
	ID           int64           `json:"id"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	OrderNumber  string          `json:"order_number"`
	Status       Status          `json:"status"` // lihat status.go
	CreatedAt    time.Time       `json:"created_at"`
}

type OrderItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderLine is an order item joined with its product. Price is the product's
// current price, not the price charged at checkout.
type OrderLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
