package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// StockOp selects how UpdateStock applies its quantity.
type StockOp string

const (
	// StockAdd increases current stock by the quantity.
	StockAdd StockOp = "add"

	// StockSubtract decreases current stock, failing rather than clamping
	// when the result would be negative.
	StockSubtract StockOp = "subtract"

	// StockSet replaces current stock with the quantity.
	StockSet StockOp = "set"
)

// Inventory wraps the Inventory collection: one record per stocked product
// and location, carrying productId, currentStock, minStockLevel, unitCost,
// location and lastUpdated.
type Inventory struct {
	*store.Store
	products *store.Store
}

// NewInventory builds the inventory repository.
func NewInventory(inventory, products *store.Store) *Inventory {
	return &Inventory{Store: inventory, products: products}
}

// Alerts bundles the stock situations needing attention.
type Alerts struct {
	LowStock    []core.Record `json:"lowStock"`
	OutOfStock  []core.Record `json:"outOfStock"`
	TotalAlerts int           `json:"totalAlerts"`
}

// Summary is the headline view of inventory value and risk.
type Summary struct {
	TotalItems        int     `json:"totalItems"`
	TotalValue        float64 `json:"totalValue"`
	LowStockCount     int     `json:"lowStockCount"`
	OutOfStockCount   int     `json:"outOfStockCount"`
	AverageStockValue float64 `json:"averageStockValue"`
}

// WithProduct returns all inventory records with their product joined.
func (inv *Inventory) WithProduct(ctx context.Context) ([]core.Record, error) {
	items, err := inv.Load(ctx)
	if err != nil {
		return nil, err
	}
	products, err := inv.products.Load(ctx)
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

// LowStock returns records at or below the threshold, lowest first.
func (inv *Inventory) LowStock(ctx context.Context, threshold int) ([]core.Record, error) {
	return inv.Query(ctx, core.Q().
		Cond("currentStock", core.OpLte, threshold).
		Sort("currentStock", core.Asc))
}

// OutOfStock returns records with zero stock.
func (inv *Inventory) OutOfStock(ctx context.Context) ([]core.Record, error) {
	return inv.Query(ctx, core.Q().Where("currentStock", 0))
}

// ByProduct returns the inventory records for one product.
func (inv *Inventory) ByProduct(ctx context.Context, productID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(productID)
	if !ok {
		return nil, nil
	}
	return inv.Query(ctx, core.Q().Where("productId", id))
}

// ByLocation returns the inventory records at one location.
func (inv *Inventory) ByLocation(ctx context.Context, location string) ([]core.Record, error) {
	return inv.Query(ctx, core.Q().Where("location", location))
}

// UpdateStock applies op with the given quantity to the product's inventory
// record. A subtract that would drive stock negative fails with
// core.ErrInvariant and leaves the record unchanged; a missing inventory
// record fails with core.ErrNotFound.
func (inv *Inventory) UpdateStock(ctx context.Context, productID interface{}, quantity int64, op StockOp) error {
	id, ok := core.ToInt(productID)
	if !ok {
		return core.ErrNotFound
	}
	record, err := inv.FindOne(ctx, core.Q().Where("productId", id))
	if err != nil {
		return fmt.Errorf("inventory for product %d: %w", id, err)
	}

	current := record.Int("currentStock")
	var next int64
	switch op {
	case StockAdd:
		next = current + quantity
	case StockSubtract:
		next = current - quantity
		if next < 0 {
			return fmt.Errorf("stock %d - %d would go negative for product %d: %w",
				current, quantity, id, core.ErrInvariant)
		}
	case StockSet:
		next = quantity
	default:
		return fmt.Errorf("unknown stock operation %q: %w", op, core.ErrInvariant)
	}

	_, err = inv.Update(ctx, core.Record{
		"currentStock": next,
		"lastUpdated":  time.Now().UTC().Format(core.TimeFormat),
	}, core.Q().Where("productId", id))
	return err
}

// GetAlerts returns low-stock (threshold 10) and out-of-stock records.
func (inv *Inventory) GetAlerts(ctx context.Context) (Alerts, error) {
	low, err := inv.LowStock(ctx, 10)
	if err != nil {
		return Alerts{}, err
	}
	out, err := inv.OutOfStock(ctx)
	if err != nil {
		return Alerts{}, err
	}
	return Alerts{LowStock: low, OutOfStock: out, TotalAlerts: len(low) + len(out)}, nil
}

// Movement returns the product's inventory records touched within the
// window, by lastUpdated.
func (inv *Inventory) Movement(ctx context.Context, productID interface{}, start, end time.Time) ([]core.Record, error) {
	id, ok := core.ToInt(productID)
	if !ok {
		return nil, nil
	}
	moved, err := inv.FindByDateRange(ctx, "lastUpdated", start, end)
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for _, r := range moved {
		if r.Int("productId") == id {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetSummary folds the whole collection into totals: stock value is
// currentStock times unitCost per record.
func (inv *Inventory) GetSummary(ctx context.Context) (Summary, error) {
	items, err := inv.Load(ctx)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	s.TotalItems = len(items)
	for _, item := range items {
		s.TotalValue += float64(item.Int("currentStock")) * item.Float("unitCost")
		if item.Int("currentStock") <= item.Int("minStockLevel") {
			s.LowStockCount++
		}
		if item.Int("currentStock") == 0 {
			s.OutOfStockCount++
		}
	}
	if s.TotalItems > 0 {
		s.AverageStockValue = s.TotalValue / float64(s.TotalItems)
	}
	return s, nil
}

// SearchInventory matches term against the joined product's name and sku
// and the record's location.
func (inv *Inventory) SearchInventory(ctx context.Context, term string) ([]core.Record, error) {
	items, err := inv.Load(ctx)
	if err != nil {
		return nil, err
	}
	products, err := inv.products.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(products)

	needle := strings.ToLower(term)
	var out []core.Record
	for _, item := range items {
		product, ok := idx[item.Int("productId")]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(product.String("name")), needle) ||
			strings.Contains(strings.ToLower(product.String("sku")), needle) ||
			strings.Contains(strings.ToLower(item.String("location")), needle) {
			out = append(out, item)
		}
	}
	return out, nil
}
