package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Config{StoreDriver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")}

	store, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreDriver: "mysql"})
	assert.ErrorContains(t, err, "unknown store driver")
}
