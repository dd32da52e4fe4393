package backroom

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
)

func newTestClient(t *testing.T, mutate func(*Config)) *Client {
	t.Helper()
	config := DefaultConfig()
	config.DataDir = t.TempDir()
	if mutate != nil {
		mutate(config)
	}
	client, err := NewClient(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientRequiresConfig(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&Config{})
	require.Error(t, err, "data_dir is required")
}

func TestClientEndToEnd(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	customer, err := client.Customers().Create(ctx, core.Record{
		"firstName": "Amy", "lastName": "Lee", "email": "amy@example.com",
	})
	require.NoError(t, err)

	product, err := client.Products().Create(ctx, core.Record{
		"name": "Widget", "sku": "W-1", "stockQuantity": 10, "price": 4.0,
	})
	require.NoError(t, err)

	order, err := client.Orders().CreateOrder(ctx, repo.OrderInput{
		CustomerID: customer.ID(),
		Lines:      []repo.OrderLine{{ProductID: product.ID(), Quantity: 2, UnitPrice: 4.0}},
	})
	require.NoError(t, err)
	assert.InDelta(t, 8.0, order.Float("totalAmount"), 1e-9)

	// Repositories built later observe the same files.
	got, err := client.Products().FindByID(ctx, product.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 8, got.Int("stockQuantity"))
}

func TestClientStoreRegistry(t *testing.T) {
	client := newTestClient(t, nil)

	first := client.Store(ColProducts)
	second := client.Store(ColProducts)
	assert.Same(t, first, second, "one store per collection")
}

func TestClientChangeFeed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, func(c *Config) {
		c.Events.Enabled = true
		c.Events.Transport = "memory"
	})
	require.NotNil(t, client.ChangeFeed())

	_, err := client.Products().Create(ctx, core.Record{"name": "Widget", "sku": "W-1"})
	require.NoError(t, err)

	batch, err := client.ChangeFeed().Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, ColProducts, batch[0].Collection)
	assert.Equal(t, core.OpCreate, batch[0].Op)
}

func TestClientStartStopWithoutMirror(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, nil)

	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Stop())
	require.Error(t, client.Resync(ctx, ColProducts), "resync needs the mirror")
}

func TestClientPagination(t *testing.T) {
	client := newTestClient(t, func(c *Config) {
		c.Pagination.DefaultLimit = 25
		c.Pagination.MaxLimit = 50
	})

	p := client.Pagination(nil, nil)
	assert.Equal(t, 25, p.Limit)
	p = client.Pagination("2", "500")
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 50, p.Offset)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	payload := []byte("data_dir: /var/lib/backroom\npagination:\n  default_limit: 20\n  max_limit: 200\nreports:\n  cache_ttl: 30s\n")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/backroom", config.DataDir)
	assert.Equal(t, 20, config.Pagination.DefaultLimit)
	assert.Equal(t, 200, config.Pagination.MaxLimit)
	assert.Equal(t, 30*time.Second, config.Reports.CacheTTL)
	// Untouched sections keep their defaults.
	assert.False(t, config.Cache.Enabled)
	assert.Equal(t, "memory", config.Events.Transport)

	_, err = LoadConfig(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
}
