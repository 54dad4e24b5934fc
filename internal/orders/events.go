package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced = "OrderPlaced"
	EventStockLow    = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "storefront"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually the order id
	Payload       json.RawMessage `json:"payload"`
}

type PlacedItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	CustomerName string          `json:"customer_name"`
	Items        []PlacedItem    `json:"items"`
	Total        decimal.Decimal `json:"total"`
}

type StockLowPayload struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	OrderID   int64  `json:"order_id"` // order that pushed stock down
}
