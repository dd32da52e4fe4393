package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backroom-io/backroom/internal/collection"
	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

type fixture struct {
	products   *Products
	categories *Categories
	customers  *Customers
	users      *Users
	orders     *Orders
	items      *OrderItems
	inventory  *Inventory
	audit      *AuditLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	open := func(name string) *store.Store {
		return store.New(collection.New(dir, name))
	}

	products := open("products")
	categories := open("categories")
	customers := open("customers")
	users := open("users")
	orders := open("orders")
	orderItems := open("orderItems")
	inventory := open("inventory")
	auditLogs := open("auditLogs")

	p := NewProducts(products, categories, orderItems)
	return &fixture{
		products:   p,
		categories: NewCategories(categories, products),
		customers:  NewCustomers(customers, orders),
		users:      NewUsers(users),
		orders:     NewOrders(orders, orderItems, customers, users, p),
		items:      NewOrderItems(orderItems, orders, products),
		inventory:  NewInventory(inventory, products),
		audit:      NewAuditLogs(auditLogs, users),
	}
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	product, err := f.products.Create(ctx, core.Record{"name": "Widget", "sku": "WID-001", "stockQuantity": 5})
	require.NoError(t, err)

	require.NoError(t, f.products.AdjustStock(ctx, product.ID(), -3))
	got, err := f.products.FindByID(ctx, product.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Int("stockQuantity"))

	err = f.products.AdjustStock(ctx, product.ID(), -3)
	require.ErrorIs(t, err, core.ErrInvariant)

	got, err = f.products.FindByID(ctx, product.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Int("stockQuantity"), "failed adjustment must not change stock")
}

func TestProductSKUConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.products.Create(ctx, core.Record{"name": "A", "sku": "DUP-1"})
	require.NoError(t, err)

	_, err = f.products.Create(ctx, core.Record{"name": "B", "sku": "DUP-1"})
	require.ErrorIs(t, err, core.ErrConflict)

	// Same SKU on a different product via update is also rejected.
	other, err := f.products.Create(ctx, core.Record{"name": "C", "sku": "DUP-2"})
	require.NoError(t, err)
	_, err = f.products.UpdateByID(ctx, other.ID(), core.Record{"sku": "DUP-1"})
	require.ErrorIs(t, err, core.ErrConflict)

	// Updating a product without changing its SKU passes the check.
	updated, err := f.products.UpdateByID(ctx, other.ID(), core.Record{"sku": "DUP-2", "name": "C2"})
	require.NoError(t, err)
	assert.Equal(t, "C2", updated.String("name"))
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.Create(ctx, core.Record{"username": "amy", "email": "amy@example.com"})
	require.NoError(t, err)

	_, err = f.users.Create(ctx, core.Record{"username": "amy2", "email": "amy@example.com"})
	require.ErrorIs(t, err, core.ErrConflict)

	_, err = f.users.Create(ctx, core.Record{"username": "amy", "email": "amy2@example.com"})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestCustomerEmailConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.customers.Create(ctx, core.Record{"firstName": "Jo", "email": "jo@example.com"})
	require.NoError(t, err)
	_, err = f.customers.Create(ctx, core.Record{"firstName": "Jon", "email": "jo@example.com"})
	require.ErrorIs(t, err, core.ErrConflict)
}

func TestInventoryUpdateStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.inventory.Store.Create(ctx, core.Record{"productId": 1, "currentStock": 10, "unitCost": 2.5})
	require.NoError(t, err)

	require.NoError(t, f.inventory.UpdateStock(ctx, 1, 4, StockSubtract))
	rec, err := f.inventory.FindOne(ctx, core.Q().Where("productId", 1))
	require.NoError(t, err)
	assert.EqualValues(t, 6, rec.Int("currentStock"))

	require.ErrorIs(t, f.inventory.UpdateStock(ctx, 1, 7, StockSubtract), core.ErrInvariant)

	require.NoError(t, f.inventory.UpdateStock(ctx, 1, 3, StockAdd))
	require.NoError(t, f.inventory.UpdateStock(ctx, 1, 100, StockSet))
	rec, err = f.inventory.FindOne(ctx, core.Q().Where("productId", 1))
	require.NoError(t, err)
	assert.EqualValues(t, 100, rec.Int("currentStock"))
	assert.NotEmpty(t, rec.String("lastUpdated"))

	require.ErrorIs(t, f.inventory.UpdateStock(ctx, 999, 1, StockAdd), core.ErrNotFound)
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	customer, err := f.customers.Create(ctx, core.Record{"firstName": "Jo", "email": "jo@example.com"})
	require.NoError(t, err)
	p1, err := f.products.Create(ctx, core.Record{"name": "Widget", "sku": "W-1", "stockQuantity": 10, "price": 4.0})
	require.NoError(t, err)
	p2, err := f.products.Create(ctx, core.Record{"name": "Gadget", "sku": "G-1", "stockQuantity": 3, "price": 9.0})
	require.NoError(t, err)

	order, err := f.orders.CreateOrder(ctx, OrderInput{
		CustomerID: customer.ID(),
		Lines: []OrderLine{
			{ProductID: p1.ID(), Quantity: 2, UnitPrice: 4.0},
			{ProductID: p2.ID(), Quantity: 1, UnitPrice: 9.0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.String("status"))
	assert.Equal(t, "cash", order.String("paymentMethod"))
	assert.InDelta(t, 17.0, order.Float("totalAmount"), 1e-9)
	assert.Contains(t, order.String("orderNumber"), "ORD-")

	items, err := f.orders.Items(ctx, order.ID())
	require.NoError(t, err)
	require.Len(t, items, 2)

	got, err := f.products.FindByID(ctx, p1.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 8, got.Int("stockQuantity"))
	got, err = f.products.FindByID(ctx, p2.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Int("stockQuantity"))

	total, err := f.orders.Total(ctx, order.ID())
	require.NoError(t, err)
	assert.InDelta(t, 17.0, total, 1e-9)
}

func TestCreateOrderValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	customer, err := f.customers.Create(ctx, core.Record{"email": "jo@example.com"})
	require.NoError(t, err)

	_, err = f.orders.CreateOrder(ctx, OrderInput{CustomerID: customer.ID()})
	require.ErrorIs(t, err, core.ErrInvariant)

	_, err = f.orders.CreateOrder(ctx, OrderInput{
		CustomerID: 999,
		Lines:      []OrderLine{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.orders.CreateOrder(ctx, OrderInput{
		CustomerID: customer.ID(),
		Lines:      []OrderLine{{ProductID: 999, Quantity: 1}},
	})
	require.ErrorIs(t, err, core.ErrNotFound)

	product, err := f.products.Create(ctx, core.Record{"name": "Widget", "sku": "W-1", "stockQuantity": 1, "price": 4.0})
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(ctx, OrderInput{
		CustomerID: customer.ID(),
		Lines:      []OrderLine{{ProductID: product.ID(), Quantity: 2, UnitPrice: 4.0}},
	})
	require.ErrorIs(t, err, core.ErrInvariant)
}

func TestCreateOrderCompensation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	customer, err := f.customers.Create(ctx, core.Record{"email": "jo@example.com"})
	require.NoError(t, err)
	product, err := f.products.Create(ctx, core.Record{"name": "Widget", "sku": "W-1", "stockQuantity": 5, "price": 4.0})
	require.NoError(t, err)

	// Both lines pass the up-front check (5 >= 3), but the second decrement
	// fails mid-sequence, so everything written so far must be rolled back.
	_, err = f.orders.CreateOrder(ctx, OrderInput{
		CustomerID: customer.ID(),
		Lines: []OrderLine{
			{ProductID: product.ID(), Quantity: 3, UnitPrice: 4.0},
			{ProductID: product.ID(), Quantity: 3, UnitPrice: 4.0},
		},
	})
	require.ErrorIs(t, err, core.ErrInvariant)

	got, err := f.products.FindByID(ctx, product.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 5, got.Int("stockQuantity"), "compensation must restore stock")

	orders, err := f.orders.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders, "compensation must delete the order")

	items, err := f.items.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items, "compensation must delete written items")
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order, err := f.orders.Store.Create(ctx, core.Record{"status": StatusPending})
	require.NoError(t, err)

	require.NoError(t, f.orders.UpdateStatus(ctx, order.ID(), StatusCompleted, "done"))
	got, err := f.orders.FindByID(ctx, order.ID())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.String("status"))

	// Any known status may follow any other, including backwards.
	require.NoError(t, f.orders.UpdateStatus(ctx, order.ID(), StatusPending, ""))

	require.ErrorIs(t, f.orders.UpdateStatus(ctx, order.ID(), "misplaced", ""), core.ErrInvariant)
}

func TestCoercePage(t *testing.T) {
	tests := []struct {
		name        string
		page, limit interface{}
		want        Pagination
	}{
		{"defaults", nil, nil, Pagination{Page: 1, Limit: 10, Offset: 0}},
		{"strings", "3", "20", Pagination{Page: 3, Limit: 20, Offset: 40}},
		{"floats from json", 2.0, 5.0, Pagination{Page: 2, Limit: 5, Offset: 5}},
		{"zero page", 0, 10, Pagination{Page: 1, Limit: 10, Offset: 0}},
		{"negative page", -4, 10, Pagination{Page: 1, Limit: 10, Offset: 0}},
		{"limit capped", 1, 5000, Pagination{Page: 1, Limit: 100, Offset: 0}},
		{"garbage strings", "abc", "xyz", Pagination{Page: 1, Limit: 10, Offset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CoercePage(tt.page, tt.limit, 10, 100))
		})
	}
}

func TestTopSelling(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p1, err := f.products.Create(ctx, core.Record{"name": "Widget", "sku": "W-1"})
	require.NoError(t, err)
	p2, err := f.products.Create(ctx, core.Record{"name": "Gadget", "sku": "G-1"})
	require.NoError(t, err)

	for _, seed := range []struct {
		productID int64
		qty       int
	}{{p1.ID(), 2}, {p2.ID(), 5}, {p1.ID(), 1}} {
		_, err := f.items.Store.Create(ctx, core.Record{"orderId": 1, "productId": seed.productID, "quantity": seed.qty})
		require.NoError(t, err)
	}

	top, err := f.products.TopSelling(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Gadget", top[0].String("name"))
	assert.EqualValues(t, 5, top[0].Int("totalSold"))
	assert.Equal(t, "Widget", top[1].String("name"))
	assert.EqualValues(t, 3, top[1].Int("totalSold"))
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Create(ctx, core.Record{"username": "amy", "email": "amy@example.com"})
	require.NoError(t, err)

	_, err = f.audit.Log(ctx, "CREATE", "product", 7, user.ID(), "created Widget")
	require.NoError(t, err)
	_, err = f.audit.Log(ctx, "UPDATE", "product", 7, user.ID(), "price change")
	require.NoError(t, err)
	_, err = f.audit.Log(ctx, "DELETE", "customer", 2, user.ID(), "")
	require.NoError(t, err)

	byEntity, err := f.audit.ByEntity(ctx, "product", 7, 50)
	require.NoError(t, err)
	assert.Len(t, byEntity, 2)

	byAction, err := f.audit.ByAction(ctx, "DELETE", 50)
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, "customer", byAction[0].String("entityType"))

	withUser, err := f.audit.WithUser(ctx, 10)
	require.NoError(t, err)
	require.Len(t, withUser, 3)
	joined, ok := withUser[0]["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "amy", joined["username"])
}

func TestInventorySummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	seed := []core.Record{
		{"productId": 1, "currentStock": 10, "minStockLevel": 5, "unitCost": 2.0},
		{"productId": 2, "currentStock": 3, "minStockLevel": 5, "unitCost": 10.0},
		{"productId": 3, "currentStock": 0, "minStockLevel": 5, "unitCost": 1.0},
	}
	for _, r := range seed {
		_, err := f.inventory.Store.Create(ctx, r)
		require.NoError(t, err)
	}

	summary, err := f.inventory.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalItems)
	assert.InDelta(t, 50.0, summary.TotalValue, 1e-9)
	assert.Equal(t, 2, summary.LowStockCount)
	assert.Equal(t, 1, summary.OutOfStockCount)

	alerts, err := f.inventory.GetAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, alerts.OutOfStock, 1)
	assert.Equal(t, len(alerts.LowStock)+len(alerts.OutOfStock), alerts.TotalAlerts)
}
