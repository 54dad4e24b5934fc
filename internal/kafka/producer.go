package kafka

import (
	"context"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 10 * time.Second

// Producer buffers messages in memory and writes them from one goroutine.
type Producer struct {
	w       *kafka.Writer
	topic   string
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic:   topic,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until Close is called. Messages still buffered at
// that point are flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
			if err := p.w.WriteMessages(wctx, m); err != nil {
				log.Printf("kafka write topic=%s key=%s: %v", p.topic, m.Key, err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("kafka writer close topic=%s: %v", p.topic, err)
		}
	}()
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.inbox <- kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// Close stops accepting messages; the loop flushes what is left and exits.
func (p *Producer) Close() { close(p.inbox) }

// WaitClosed blocks until the write loop has exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
