package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Products wraps the Products collection. Product records carry name, sku,
// barcode, description, price, stockQuantity, categoryId and supplierId.
type Products struct {
	*store.Store
	categories *store.Store
	orderItems *store.Store
}

// NewProducts builds the products repository. categories and orderItems are
// joined against for category details and sales rankings.
func NewProducts(products, categories, orderItems *store.Store) *Products {
	return &Products{Store: products, categories: categories, orderItems: orderItems}
}

// Create adds a product after checking SKU uniqueness.
func (p *Products) Create(ctx context.Context, fields core.Record) (core.Record, error) {
	if err := requireUnique(ctx, p.Store, "sku", fields["sku"], 0); err != nil {
		return nil, err
	}
	return p.Store.Create(ctx, fields)
}

// UpdateByID updates one product. A SKU change is checked for uniqueness
// against every other product first.
func (p *Products) UpdateByID(ctx context.Context, id interface{}, fields core.Record) (core.Record, error) {
	existing, err := p.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sku, ok := fields["sku"]; ok && sku != existing["sku"] {
		if err := requireUnique(ctx, p.Store, "sku", sku, existing.ID()); err != nil {
			return nil, err
		}
	}
	if _, err := p.Update(ctx, fields, core.Q().Where(core.FieldID, existing.ID())); err != nil {
		return nil, err
	}
	return p.FindByID(ctx, existing.ID())
}

// WithCategory returns all products with their category joined under
// "category" (nil when the category is gone).
func (p *Products) WithCategory(ctx context.Context) ([]core.Record, error) {
	products, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := p.categories.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(categories)
	out := make([]core.Record, len(products))
	for i, prod := range products {
		out[i] = attach(prod, "category", "categoryId", idx)
	}
	return out, nil
}

// ByCategory returns products in the given category.
func (p *Products) ByCategory(ctx context.Context, categoryID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(categoryID)
	if !ok {
		return nil, nil
	}
	return p.Query(ctx, core.Q().Where("categoryId", id))
}

// BySupplier returns products sourced from the given supplier.
func (p *Products) BySupplier(ctx context.Context, supplierID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(supplierID)
	if !ok {
		return nil, nil
	}
	return p.Query(ctx, core.Q().Where("supplierId", id))
}

// SearchProducts matches term against name, description, sku and barcode.
func (p *Products) SearchProducts(ctx context.Context, term string) ([]core.Record, error) {
	return p.Search(ctx, term, []string{"name", "description", "sku", "barcode"})
}

// LowStock returns products at or below the threshold, lowest first.
func (p *Products) LowStock(ctx context.Context, threshold int) ([]core.Record, error) {
	return p.Query(ctx, core.Q().
		Cond("stockQuantity", core.OpLte, threshold).
		Sort("stockQuantity", core.Asc))
}

// OutOfStock returns products with zero stock.
func (p *Products) OutOfStock(ctx context.Context) ([]core.Record, error) {
	return p.Query(ctx, core.Q().Where("stockQuantity", 0))
}

// ByPriceRange returns products priced within [min, max], cheapest first.
func (p *Products) ByPriceRange(ctx context.Context, min, max float64) ([]core.Record, error) {
	return p.Query(ctx, core.Q().
		Cond("price", core.OpGte, min).
		Cond("price", core.OpLte, max).
		Sort("price", core.Asc))
}

// Recent returns the most recently created products.
func (p *Products) Recent(ctx context.Context, limit int) ([]core.Record, error) {
	return p.Query(ctx, core.Q().Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// AdjustStock applies a signed quantity change to one product's stock. A
// negative delta that would drive stock below zero fails with
// core.ErrInvariant and leaves the record unchanged.
func (p *Products) AdjustStock(ctx context.Context, productID interface{}, delta int64) error {
	product, err := p.FindByID(ctx, productID)
	if err != nil {
		return err
	}
	newStock := product.Int("stockQuantity") + delta
	if newStock < 0 {
		return fmt.Errorf("stock %d - %d would go negative for product %d: %w",
			product.Int("stockQuantity"), -delta, product.ID(), core.ErrInvariant)
	}
	_, err = p.Update(ctx, core.Record{"stockQuantity": newStock}, core.Q().Where(core.FieldID, product.ID()))
	return err
}

// TopSelling ranks products by total quantity sold across all order items
// and returns the top limit with a "totalSold" field attached.
func (p *Products) TopSelling(ctx context.Context, limit int) ([]core.Record, error) {
	items, err := p.orderItems.Load(ctx)
	if err != nil {
		return nil, err
	}
	sold := make(map[int64]int64)
	for _, item := range items {
		sold[item.Int("productId")] += item.Int("quantity")
	}

	type ranked struct {
		productID int64
		total     int64
	}
	ranking := make([]ranked, 0, len(sold))
	for id, total := range sold {
		ranking = append(ranking, ranked{id, total})
	}
	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].total > ranking[j].total })
	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}

	var out []core.Record
	for _, r := range ranking {
		product, err := p.FindByID(ctx, r.productID)
		if err != nil {
			// Sold product since deleted; skip it.
			continue
		}
		entry := product.Clone()
		entry["totalSold"] = r.total
		out = append(out, entry)
	}
	return out, nil
}
