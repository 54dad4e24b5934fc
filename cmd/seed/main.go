package main

import (
	"context"
	"flag"
	"log"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/storage"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type sample struct {
	name  string
	price string
	stock int
}

var menu = []sample{
	{"Burger", "5.99", 20},
	{"Fries", "2.99", 50},
	{"Soda", "1.49", 100},
	{"Pizza", "8.99", 10},
}

func main() {
	force := flag.Bool("force", false, "insert the sample menu even when products exist")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store open (%s): %v", cfg.StoreDriver, err)
	}
	defer store.Close()

	n, err := seed(ctx, store, *force)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("inserted %d sample products", n)
}

// seed inserts the sample menu into an empty catalog.
func seed(ctx context.Context, store orders.Store, force bool) (int, error) {
	existing, err := store.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 && !force {
		log.Printf("catalog already has %d products, skipping (use -force)", len(existing))
		return 0, nil
	}
	for _, s := range menu {
		if _, err := store.AddProduct(ctx, s.name, decimal.RequireFromString(s.price), s.stock); err != nil {
			return 0, err
		}
	}
	return len(menu), nil
}
