package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
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
	if err := redisx.Ping(ctx, rdb); err != nil {
		log.Fatalf("%v", err)
	}

	// Kafka producer, off when no brokers are configured
	var prod *kafkax.Producer
	sh := &httpx.StorefrontHandler{
		Catalog: store,
		Writer: &checkout.Writer{
			Store:                   store,
			DecrementStock:          cfg.DecrementStock,
			RejectInsufficientStock: cfg.RejectInsufficientStock,
		},
		Sessions: &redisx.CartSessions{RDB: rdb, TTL: cfg.SessionTTL},
		Service:  cfg.ServiceName,
	}
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderPlaced, 1024)
		prod.Start(ctx)
		sh.Producer = prod
	} else {
		log.Println("KAFKA_BROKERS empty, order events disabled")
	}

	oh := &httpx.OrdersHandler{Store: store, Cache: &redisx.ViewCache{RDB: rdb}}

	router := httpx.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(httpx.Sessions(cfg.SessionTTL))
		sh.Register(r)
	})
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s (store=%s)", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()      // stop accepting, flush what is buffered
		prod.WaitClosed() // drain
	}
}
