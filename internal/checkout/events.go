package checkout

import (
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
)

// OrderPlacedEvent wraps a receipt in a v1 envelope.
func OrderPlacedEvent(rc Receipt, producer, traceID string) orders.Envelope {
	items := make([]orders.PlacedItem, 0, len(rc.Lines))
	for _, l := range rc.Lines {
		items = append(items, orders.PlacedItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}
	return orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: strconv.FormatInt(rc.OrderID, 10),
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:      rc.OrderID,
			OrderNumber:  rc.OrderNumber,
			CustomerName: rc.CustomerName,
			Items:        items,
			Total:        rc.Total,
		}),
	}
}
