package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backroom-io/backroom/internal/collection"
	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
	"github.com/backroom-io/backroom/internal/store"
)

type harness struct {
	dir     string
	service *Service
	deps    Deps
	stores  map[string]*store.Store
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	dir := t.TempDir()
	stores := make(map[string]*store.Store)
	open := func(name string) *store.Store {
		s := store.New(collection.New(dir, name))
		stores[name] = s
		return s
	}

	products := open("products")
	categories := open("categories")
	customers := open("customers")
	users := open("users")
	orders := open("orders")
	orderItems := open("orderItems")
	inventory := open("inventory")
	payments := open("payments")
	auditLogs := open("auditLogs")

	p := repo.NewProducts(products, categories, orderItems)
	deps := Deps{
		Orders:     repo.NewOrders(orders, orderItems, customers, users, p),
		OrderItems: repo.NewOrderItems(orderItems, orders, products),
		Products:   p,
		Customers:  repo.NewCustomers(customers, orders),
		Inventory:  repo.NewInventory(inventory, products),
		Payments:   repo.NewPayments(payments),
		AuditLogs:  repo.NewAuditLogs(auditLogs, users),
	}
	return &harness{dir: dir, service: New(deps, opts...), deps: deps, stores: stores}
}

// seed writes records straight to the collection file so tests control
// createdAt, which the store would otherwise stamp itself.
func (h *harness) seed(t *testing.T, name string, records []core.Record) {
	t.Helper()
	require.NoError(t, collection.New(h.dir, name).Write(records))
}

func jan(day int) string {
	return time.Date(2024, 1, day, 12, 0, 0, 0, time.UTC).Format(core.TimeFormat)
}

func TestSalesReportWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.seed(t, "orders", []core.Record{
		{"id": 1, "status": "completed", "totalAmount": 100.0, "createdAt": jan(1)},
		{"id": 2, "status": "completed", "totalAmount": 50.0, "createdAt": jan(15)},
		{"id": 3, "status": "pending", "totalAmount": 70.0,
			"createdAt": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Format(core.TimeFormat)},
	})
	h.seed(t, "orderItems", []core.Record{
		{"id": 1, "orderId": 1, "productId": 1, "quantity": 2, "unitPrice": 50.0},
		{"id": 2, "orderId": 2, "productId": 2, "quantity": 1, "unitPrice": 50.0},
		{"id": 3, "orderId": 3, "productId": 1, "quantity": 1, "unitPrice": 70.0},
	})
	h.seed(t, "products", []core.Record{
		{"id": 1, "name": "Widget", "sku": "W-1"},
		{"id": 2, "name": "Gadget", "sku": "G-1"},
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	got, err := h.service.Sales(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, 2, got.TotalOrders)
	assert.Equal(t, 2, got.CompletedOrders)
	assert.InDelta(t, 150.0, got.TotalRevenue, 1e-9)
	assert.InDelta(t, 75.0, got.AverageOrderValue, 1e-9)
	assert.Equal(t, map[string]int{"completed": 2}, got.OrdersByStatus)

	// The February pending order's line is outside the window.
	require.Len(t, got.TopProducts, 2)
	assert.Equal(t, "Widget", got.TopProducts[0].Name)
	assert.InDelta(t, 100.0, got.TopProducts[0].Revenue, 1e-9)
	assert.EqualValues(t, 2, got.TopProducts[0].Quantity)
}

func TestSalesReportEmptyWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	got, err := h.service.Sales(ctx,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, got.TotalOrders)
	assert.Zero(t, got.AverageOrderValue, "empty window must not divide by zero")
}

func TestCustomerReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.seed(t, "customers", []core.Record{
		{"id": 1, "firstName": "Amy", "lastName": "Lee", "email": "amy@example.com", "isActive": true, "createdAt": jan(2)},
		{"id": 2, "firstName": "Bob", "lastName": "Roy", "email": "bob@example.com", "isActive": false, "createdAt": jan(3)},
	})
	h.seed(t, "orders", []core.Record{
		{"id": 1, "customerId": 1, "status": "completed", "totalAmount": 100.0, "createdAt": jan(5)},
		{"id": 2, "customerId": 1, "status": "completed", "totalAmount": 40.0, "createdAt": jan(6)},
		{"id": 3, "customerId": 2, "status": "completed", "totalAmount": 90.0, "createdAt": jan(7)},
		{"id": 4, "customerId": 2, "status": "cancelled", "totalAmount": 500.0, "createdAt": jan(8)},
	})

	got, err := h.service.Customers(ctx,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2, got.TotalCustomers)
	assert.Equal(t, 1, got.ActiveCustomers)
	assert.Equal(t, 2, got.NewCustomers)
	require.Len(t, got.TopCustomers, 2)
	assert.Equal(t, "Amy Lee", got.TopCustomers[0].Name)
	assert.InDelta(t, 140.0, got.TopCustomers[0].TotalSpent, 1e-9)
	assert.InDelta(t, 90.0, got.TopCustomers[1].TotalSpent, 1e-9, "cancelled orders do not count")
}

func TestAuditSummary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.seed(t, "auditLogs", []core.Record{
		{"id": 1, "action": "CREATE", "entityType": "product", "userId": 1, "createdAt": jan(1)},
		{"id": 2, "action": "CREATE", "entityType": "product", "userId": 1, "createdAt": jan(2)},
		{"id": 3, "action": "DELETE", "entityType": "customer", "userId": 2, "createdAt": jan(3)},
	})

	got, err := h.service.Audit(ctx,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 3, got.TotalEntries)
	assert.Equal(t, 2, got.ByAction["CREATE"])
	assert.Equal(t, "CREATE", got.MostCommonAction)
	assert.EqualValues(t, 1, got.MostActiveUser)
	assert.Equal(t, 2, got.ByEntityType["product"])
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	now := time.Now().UTC().Format(core.TimeFormat)
	h.seed(t, "orders", []core.Record{
		{"id": 1, "status": "completed", "totalAmount": 30.0, "createdAt": now},
		{"id": 2, "status": "pending", "totalAmount": 10.0, "createdAt": now},
		{"id": 3, "status": "completed", "totalAmount": 99.0, "createdAt": jan(1)},
	})
	h.seed(t, "products", []core.Record{{"id": 1, "name": "Widget", "sku": "W-1"}})
	h.seed(t, "inventory", []core.Record{
		{"id": 1, "productId": 1, "currentStock": 0, "minStockLevel": 5},
	})

	got, err := h.service.GetDashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, got.TodayOrders)
	assert.InDelta(t, 30.0, got.TodayRevenue, 1e-9)
	assert.Equal(t, 1, got.PendingOrders)
	assert.Equal(t, 3, got.TotalOrders)
	assert.Equal(t, 1, got.TotalProducts)
	// Zero stock shows up both as out-of-stock and under the low threshold.
	assert.Equal(t, 2, got.InventoryAlerts)
}

// memCache is a map-backed core.Cache for exercising the cache-aside path.
type memCache struct {
	data map[string][]byte
	hits int
	sets int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	payload, ok := m.data[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	m.hits++
	return payload, nil
}

func (m *memCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	m.data[key] = append([]byte(nil), payload...)
	m.sets++
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memCache) Close() error { return nil }

func TestReportCacheAside(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	h := newHarness(t, WithCache(cache, time.Minute))

	h.seed(t, "orders", []core.Record{
		{"id": 1, "status": "completed", "totalAmount": 100.0, "createdAt": jan(1)},
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	first, err := h.service.Sales(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 0, cache.hits)

	// Mutate the underlying data: the cached window must not notice.
	h.seed(t, "orders", []core.Record{
		{"id": 1, "status": "completed", "totalAmount": 100.0, "createdAt": jan(1)},
		{"id": 2, "status": "completed", "totalAmount": 999.0, "createdAt": jan(2)},
	})

	second, err := h.service.Sales(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)

	// A different window misses the cache and sees the new order.
	wider, err := h.service.Sales(ctx, start, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, wider.TotalOrders)
}
