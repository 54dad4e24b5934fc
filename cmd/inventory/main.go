package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/storage"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the inventory worker")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store open (%s): %v", cfg.StoreDriver, err)
	}
	defer store.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pLow := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024)
	pLow.Start(ctx)

	svcName := cfg.ServiceName + "-inventory"
	svc := &inventory.Service{
		Catalog:     store,
		Dedup:       &redisx.Dedup{RDB: rdb, Service: svcName},
		ProducerLow: pLow,
		Threshold:   cfg.LowStockThreshold,
		ServiceName: svcName,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderPlaced, cfg.InventoryWorkers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("inventory consumer started: group=%s topic=%s workers=%d threshold=%d",
			cfg.InventoryGroup, orders.TopicOrderPlaced, cfg.InventoryWorkers, cfg.LowStockThreshold)
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done
	pLow.Close()
	pLow.WaitClosed()
}
