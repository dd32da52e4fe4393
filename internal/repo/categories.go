package repo

import (
	"context"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Categories wraps the Categories collection. Categories form a two-level
// hierarchy via the optional parentId field.
type Categories struct {
	*store.Store
	products *store.Store
}

// NewCategories builds the categories repository.
func NewCategories(categories, products *store.Store) *Categories {
	return &Categories{Store: categories, products: products}
}

// CategoryStats are headline category counts.
type CategoryStats struct {
	Total    int `json:"totalCategories"`
	Active   int `json:"activeCategories"`
	Inactive int `json:"inactiveCategories"`
}

// WithProductCount returns all categories with a "productCount" field.
func (c *Categories) WithProductCount(ctx context.Context) ([]core.Record, error) {
	categories, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	products, err := c.products.Load(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, p := range products {
		counts[p.Int("categoryId")]++
	}
	out := make([]core.Record, len(categories))
	for i, cat := range categories {
		entry := cat.Clone()
		entry["productCount"] = counts[cat.ID()]
		out[i] = entry
	}
	return out, nil
}

// Active returns categories with isActive true.
func (c *Categories) Active(ctx context.Context) ([]core.Record, error) {
	return c.Query(ctx, core.Q().Where("isActive", true))
}

// SearchCategories matches term against name and description.
func (c *Categories) SearchCategories(ctx context.Context, term string) ([]core.Record, error) {
	return c.Search(ctx, term, []string{"name", "description"})
}

// Hierarchy returns parent categories with their children nested under
// "children".
func (c *Categories) Hierarchy(ctx context.Context) ([]core.Record, error) {
	categories, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	children := make(map[int64][]core.Record)
	var parents []core.Record
	for _, cat := range categories {
		if parent := cat.Int("parentId"); parent != 0 {
			children[parent] = append(children[parent], cat)
		} else {
			parents = append(parents, cat)
		}
	}
	out := make([]core.Record, len(parents))
	for i, parent := range parents {
		entry := parent.Clone()
		entry["children"] = children[parent.ID()]
		out[i] = entry
	}
	return out, nil
}

// SetActive toggles a category's isActive flag.
func (c *Categories) SetActive(ctx context.Context, categoryID interface{}, active bool) error {
	id, ok := core.ToInt(categoryID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := c.Update(ctx, core.Record{"isActive": active}, core.Q().Where(core.FieldID, id))
	return err
}

// Stats tallies active and inactive categories.
func (c *Categories) Stats(ctx context.Context) (CategoryStats, error) {
	total, err := c.Count(ctx, core.Q())
	if err != nil {
		return CategoryStats{}, err
	}
	active, err := c.Count(ctx, core.Q().Where("isActive", true))
	if err != nil {
		return CategoryStats{}, err
	}
	return CategoryStats{Total: total, Active: active, Inactive: total - active}, nil
}
