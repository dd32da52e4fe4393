package repo

import (
	"context"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// OrderItems wraps the OrderItems collection: one record per order line,
// carrying orderId, productId, quantity, unitPrice and total.
type OrderItems struct {
	*store.Store
	orders   *store.Store
	products *store.Store
}

// NewOrderItems builds the order-items repository.
func NewOrderItems(orderItems, orders, products *store.Store) *OrderItems {
	return &OrderItems{Store: orderItems, orders: orders, products: products}
}

// ProductSales summarizes one product's sales over a window.
type ProductSales struct {
	TotalQuantity int64   `json:"totalQuantity"`
	TotalRevenue  float64 `json:"totalRevenue"`
	AveragePrice  float64 `json:"averagePrice"`
	OrderCount    int     `json:"orderCount"`
}

// WithProduct returns all order items with their product joined.
func (oi *OrderItems) WithProduct(ctx context.Context) ([]core.Record, error) {
	items, err := oi.Load(ctx)
	if err != nil {
		return nil, err
	}
	products, err := oi.products.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(products)
	out := make([]core.Record, len(items))
	for i, item := range items {
		out[i] = attach(item, "product", "productId", idx)
	}
	return out, nil
}

// ByOrder returns an order's lines, oldest first.
func (oi *OrderItems) ByOrder(ctx context.Context, orderID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(orderID)
	if !ok {
		return nil, nil
	}
	return oi.Query(ctx, core.Q().Where("orderId", id).Sort(core.FieldCreatedAt, core.Asc))
}

// ByProduct returns every line selling the given product, newest first.
func (oi *OrderItems) ByProduct(ctx context.Context, productID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(productID)
	if !ok {
		return nil, nil
	}
	return oi.Query(ctx, core.Q().Where("productId", id).Sort(core.FieldCreatedAt, core.Desc))
}

// LineTotal computes quantity times unit price for one line.
func (oi *OrderItems) LineTotal(ctx context.Context, itemID interface{}) (float64, error) {
	item, err := oi.FindByID(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return float64(item.Int("quantity")) * item.Float("unitPrice"), nil
}

// InOrderWindow returns the lines belonging to orders created within
// [start, end].
func (oi *OrderItems) InOrderWindow(ctx context.Context, start, end time.Time) ([]core.Record, error) {
	orders, err := oi.orders.FindByDateRange(ctx, core.FieldCreatedAt, start, end)
	if err != nil {
		return nil, err
	}
	inWindow := make(map[int64]bool, len(orders))
	for _, order := range orders {
		inWindow[order.ID()] = true
	}

	items, err := oi.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for _, item := range items {
		if inWindow[item.Int("orderId")] {
			out = append(out, item)
		}
	}
	return out, nil
}

// SalesForProduct folds the window's lines for one product into a summary.
func (oi *OrderItems) SalesForProduct(ctx context.Context, productID interface{}, start, end time.Time) (ProductSales, error) {
	id, ok := core.ToInt(productID)
	if !ok {
		return ProductSales{}, nil
	}
	items, err := oi.InOrderWindow(ctx, start, end)
	if err != nil {
		return ProductSales{}, err
	}

	var summary ProductSales
	for _, item := range items {
		if item.Int("productId") != id {
			continue
		}
		summary.TotalQuantity += item.Int("quantity")
		summary.TotalRevenue += float64(item.Int("quantity")) * item.Float("unitPrice")
		summary.OrderCount++
	}
	if summary.TotalQuantity > 0 {
		summary.AveragePrice = summary.TotalRevenue / float64(summary.TotalQuantity)
	}
	return summary, nil
}
