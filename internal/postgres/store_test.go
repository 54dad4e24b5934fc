package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to POSTGRES_TEST_DSN and resets the tables.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, EnsureSchema(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE order_items, orders, products RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return &Store{DB: pool}
}

func TestProductsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, name := range []string{"Burger", "Fries", "Soda"} {
		_, err := s.AddProduct(ctx, name, decimal.RequireFromString("1.49"), 3)
		require.NoError(t, err)
	}

	ps, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "Burger", ps[0].Name)
	assert.Equal(t, "Soda", ps[2].Name)
	assert.Equal(t, "1.49", ps[0].Price.StringFixed(2))

	_, err = s.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestConcurrentGuardedDecrement(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p, err := s.AddProduct(ctx, "Pizza", decimal.RequireFromString("8.99"), 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.AdjustStock(ctx, p.ID, 1)
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	assert.True(t, results[0] != results[1])
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestAdjustStockRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p, err := s.AddProduct(ctx, "Soda", decimal.RequireFromString("1.49"), 4)
	require.NoError(t, err)

	ok, err := s.AdjustStock(ctx, p.ID, -3)
	require.ErrorIs(t, err, orders.ErrInvalidQuantity)
	assert.False(t, ok)

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)
}

func TestWithTxOrderAndLines(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p, err := s.AddProduct(ctx, "Burger", decimal.RequireFromString("5.99"), 20)
	require.NoError(t, err)

	var id int64
	require.NoError(t, s.WithTx(ctx, func(tx orders.Tx) error {
		var err error
		id, err = tx.InsertOrder(ctx, orders.Order{CustomerName: "Ana", Total: decimal.RequireFromString("11.98"), OrderNumber: "1001"})
		if err != nil {
			return err
		}
		_, err = tx.InsertOrderItem(ctx, orders.OrderItem{OrderID: id, ProductID: p.ID, Quantity: 2})
		return err
	}))

	o, err := s.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "11.98", o.Total.StringFixed(2))
	assert.Equal(t, orders.StatusPending, o.Status)

	lines, err := s.OrderLines(ctx, id)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "11.98", lines[0].Subtotal.StringFixed(2))
}
