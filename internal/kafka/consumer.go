package kafka

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches messages and fans them out to the workers until ctx is done.
// A cancelled context is a clean exit.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, c.workers*4)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					log.Printf("worker %d: topic=%s offset=%d: %v", id, m.Topic, m.Offset, err)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Printf("worker %d: commit offset=%d: %v", id, m.Offset, err)
				}
			}
		}(i)
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
