package repo

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Order status values. Any status may follow any other: the original system
// never enforced a transition graph and that permissiveness is preserved.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var orderStatuses = map[string]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCompleted:  true,
	StatusCancelled:  true,
}

// Orders wraps the Orders collection and coordinates the multi-collection
// order-creation sequence.
type Orders struct {
	*store.Store
	items     *store.Store
	customers *store.Store
	users     *store.Store
	products  *Products
}

// NewOrders builds the orders repository.
func NewOrders(orders, orderItems, customers, users *store.Store, products *Products) *Orders {
	return &Orders{
		Store:     orders,
		items:     orderItems,
		customers: customers,
		users:     users,
		products:  products,
	}
}

// OrderLine is one requested line in a new order.
type OrderLine struct {
	ProductID int64
	Quantity  int64
	UnitPrice float64
}

// OrderInput describes a new order.
type OrderInput struct {
	CustomerID    int64
	UserID        int64
	Lines         []OrderLine
	PaymentMethod string
	Notes         string
}

// WithDetails returns all orders with their items, customer and user joined.
// Missing join targets come through as nil.
func (o *Orders) WithDetails(ctx context.Context) ([]core.Record, error) {
	orders, err := o.Load(ctx)
	if err != nil {
		return nil, err
	}
	items, err := o.items.Load(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := o.customers.Load(ctx)
	if err != nil {
		return nil, err
	}
	users, err := o.users.Load(ctx)
	if err != nil {
		return nil, err
	}

	itemsByOrder := make(map[int64][]core.Record)
	for _, item := range items {
		itemsByOrder[item.Int("orderId")] = append(itemsByOrder[item.Int("orderId")], item)
	}
	customerIdx := indexByID(customers)
	userIdx := indexByID(users)

	out := make([]core.Record, len(orders))
	for i, order := range orders {
		entry := attach(order, "customer", "customerId", customerIdx)
		entry = attach(entry, "user", "userId", userIdx)
		entry["orderItems"] = itemsByOrder[order.ID()]
		out[i] = entry
	}
	return out, nil
}

// ByCustomer returns a customer's orders, newest first.
func (o *Orders) ByCustomer(ctx context.Context, customerID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(customerID)
	if !ok {
		return nil, nil
	}
	return o.Query(ctx, core.Q().Where("customerId", id).Sort(core.FieldCreatedAt, core.Desc))
}

// ByUser returns orders placed by the given user, newest first.
func (o *Orders) ByUser(ctx context.Context, userID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(userID)
	if !ok {
		return nil, nil
	}
	return o.Query(ctx, core.Q().Where("userId", id).Sort(core.FieldCreatedAt, core.Desc))
}

// ByStatus returns orders in the given status, newest first.
func (o *Orders) ByStatus(ctx context.Context, status string) ([]core.Record, error) {
	return o.Query(ctx, core.Q().Where("status", status).Sort(core.FieldCreatedAt, core.Desc))
}

// ByPaymentMethod returns orders paid with the given method, newest first.
func (o *Orders) ByPaymentMethod(ctx context.Context, method string) ([]core.Record, error) {
	return o.Query(ctx, core.Q().Where("paymentMethod", method).Sort(core.FieldCreatedAt, core.Desc))
}

// ByDateRange returns orders created within [start, end].
func (o *Orders) ByDateRange(ctx context.Context, start, end time.Time) ([]core.Record, error) {
	return o.FindByDateRange(ctx, core.FieldCreatedAt, start, end)
}

// Today returns orders created today.
func (o *Orders) Today(ctx context.Context) ([]core.Record, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return o.ByDateRange(ctx, start, start.AddDate(0, 0, 1))
}

// Recent returns the most recently created orders.
func (o *Orders) Recent(ctx context.Context, limit int) ([]core.Record, error) {
	return o.Query(ctx, core.Q().Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// Items returns the order's lines, oldest first.
func (o *Orders) Items(ctx context.Context, orderID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(orderID)
	if !ok {
		return nil, nil
	}
	return o.items.Query(ctx, core.Q().Where("orderId", id).Sort(core.FieldCreatedAt, core.Asc))
}

// Total recomputes an order's total from its lines.
func (o *Orders) Total(ctx context.Context, orderID interface{}) (float64, error) {
	items, err := o.Items(ctx, orderID)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, item := range items {
		total += float64(item.Int("quantity")) * item.Float("unitPrice")
	}
	return total, nil
}

// UpdateStatus moves an order to the given status with optional notes. The
// status must be a known value; transitions between known values are not
// restricted.
func (o *Orders) UpdateStatus(ctx context.Context, orderID interface{}, status, notes string) error {
	if !orderStatuses[status] {
		return fmt.Errorf("unknown order status %q: %w", status, core.ErrInvariant)
	}
	id, ok := core.ToInt(orderID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := o.Update(ctx, core.Record{"status": status, "statusNotes": notes}, core.Q().Where(core.FieldID, id))
	return err
}

// SearchOrders matches term against order number, status, and the joined
// customer's name.
func (o *Orders) SearchOrders(ctx context.Context, term string) ([]core.Record, error) {
	orders, err := o.Load(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := o.customers.Load(ctx)
	if err != nil {
		return nil, err
	}
	customerIdx := indexByID(customers)

	needle := strings.ToLower(term)
	var out []core.Record
	for _, order := range orders {
		name := ""
		if customer, ok := customerIdx[order.Int("customerId")]; ok {
			name = customer.String("firstName") + " " + customer.String("lastName")
		}
		if strings.Contains(strings.ToLower(order.String("orderNumber")), needle) ||
			strings.Contains(strings.ToLower(name), needle) ||
			strings.Contains(strings.ToLower(order.String("status")), needle) {
			out = append(out, order)
		}
	}
	return out, nil
}

// CreateOrder validates the customer, the products and their stock, then
// creates the order, its line items, and decrements stock. The three
// collections are written in sequence, not atomically: on a mid-sequence
// failure the already-written items and order are compensated by deletion,
// and a compensation failure is logged for manual reconciliation.
func (o *Orders) CreateOrder(ctx context.Context, input OrderInput) (core.Record, error) {
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("order has no lines: %w", core.ErrInvariant)
	}
	if _, err := o.customers.FindByID(ctx, input.CustomerID); err != nil {
		return nil, fmt.Errorf("customer %d: %w", input.CustomerID, err)
	}

	// Validate every line up front. Stock can still change between this
	// check and the decrement below; AdjustStock re-checks under its own
	// store lock.
	total := 0.0
	for _, line := range input.Lines {
		product, err := o.products.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", line.ProductID, err)
		}
		if product.Int("stockQuantity") < line.Quantity {
			return nil, fmt.Errorf("insufficient stock for product %q: %w",
				product.String("name"), core.ErrInvariant)
		}
		total += float64(line.Quantity) * line.UnitPrice
	}

	order, err := o.Create(ctx, core.Record{
		"orderNumber":   newOrderNumber(),
		"customerId":    input.CustomerID,
		"userId":        input.UserID,
		"totalAmount":   total,
		"status":        StatusPending,
		"paymentMethod": defaultString(input.PaymentMethod, "cash"),
		"notes":         input.Notes,
		"orderDate":     time.Now().UTC().Format(core.TimeFormat),
	})
	if err != nil {
		return nil, err
	}

	// Per line: take stock first, then write the item. Every item on disk
	// therefore corresponds to stock already taken, which is what compensate
	// relies on to restore it.
	var createdItems []int64
	for _, line := range input.Lines {
		if err := o.products.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			o.compensate(ctx, order.ID(), createdItems)
			return nil, fmt.Errorf("order %d stock for product %d: %w", order.ID(), line.ProductID, err)
		}
		item, err := o.items.Create(ctx, core.Record{
			"orderId":   order.ID(),
			"productId": line.ProductID,
			"quantity":  line.Quantity,
			"unitPrice": line.UnitPrice,
			"total":     float64(line.Quantity) * line.UnitPrice,
		})
		if err != nil {
			if restoreErr := o.products.AdjustStock(ctx, line.ProductID, line.Quantity); restoreErr != nil {
				zap.S().Errorw("order compensation: stock restore failed",
					"order", order.ID(), "product", line.ProductID, "error", restoreErr)
			}
			o.compensate(ctx, order.ID(), createdItems)
			return nil, fmt.Errorf("order %d line for product %d: %w", order.ID(), line.ProductID, err)
		}
		createdItems = append(createdItems, item.ID())
	}
	return order, nil
}

// compensate removes the order and any items written before a mid-sequence
// failure. Stock already decremented for earlier lines is restored.
func (o *Orders) compensate(ctx context.Context, orderID int64, itemIDs []int64) {
	for _, itemID := range itemIDs {
		item, err := o.items.FindByID(ctx, itemID)
		if err == nil {
			if err := o.products.AdjustStock(ctx, item.Int("productId"), item.Int("quantity")); err != nil {
				zap.S().Errorw("order compensation: stock restore failed",
					"order", orderID, "item", itemID, "error", err)
			}
		}
		if _, err := o.items.Destroy(ctx, core.Q().Where(core.FieldID, itemID)); err != nil {
			zap.S().Errorw("order compensation: item delete failed",
				"order", orderID, "item", itemID, "error", err)
		}
	}
	if _, err := o.Destroy(ctx, core.Q().Where(core.FieldID, orderID)); err != nil {
		zap.S().Errorw("order compensation: order delete failed", "order", orderID, "error", err)
	}
}

// newOrderNumber generates a human-readable order number.
func newOrderNumber() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
