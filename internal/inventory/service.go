// Package inventory watches placed orders and raises low-stock alerts.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Dedup records which events were already handled.
type Dedup interface {
	FirstSeen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Catalog     orders.Catalog
	Dedup       Dedup
	ProducerLow Publisher // publishes stock.low
	Threshold   int
	ServiceName string
}

// HandleOrderPlaced is installed as the consumer handler.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// a malformed message will never decode; commit it and move on
		log.Printf("inventory: drop undecodable message offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	first, err := s.Dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.checkStock(ctx, env); err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			err = errors.Join(err, ferr)
		}
		return err
	}
	return nil
}

func (s *Service) checkStock(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}
	for _, it := range p.Items {
		prod, err := s.Catalog.GetProduct(ctx, it.ProductID)
		if errors.Is(err, orders.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("order %d: %w", p.OrderID, err)
		}
		if prod.Stock > s.Threshold {
			continue
		}
		s.publishLow(prod, p.OrderID, env.TraceID)
	}
	return nil
}

func (s *Service) publishLow(p orders.Product, orderID int64, trace string) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockLow,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: strconv.FormatInt(orderID, 10),
		Payload: kafkax.MustMarshal(orders.StockLowPayload{
			ProductID: p.ID,
			Name:      p.Name,
			Stock:     p.Stock,
			Threshold: s.Threshold,
			OrderID:   orderID,
		}),
	}
	log.Printf("inventory: product %d (%s) low on stock: %d left", p.ID, p.Name, p.Stock)
	s.ProducerLow.Publish([]byte(strconv.FormatInt(p.ID, 10)), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(orders.EventStockLow, ev.EventVersion)...)
}
