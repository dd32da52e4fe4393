package repo

import (
	"context"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Suppliers wraps the Suppliers collection.
type Suppliers struct {
	*store.Store
	products *store.Store
}

// NewSuppliers builds the suppliers repository.
func NewSuppliers(suppliers, products *store.Store) *Suppliers {
	return &Suppliers{Store: suppliers, products: products}
}

// SupplierStats are headline supplier counts.
type SupplierStats struct {
	Total    int `json:"totalSuppliers"`
	Active   int `json:"activeSuppliers"`
	Inactive int `json:"inactiveSuppliers"`
}

// SearchSuppliers matches term against name, contact and company fields.
func (s *Suppliers) SearchSuppliers(ctx context.Context, term string) ([]core.Record, error) {
	return s.Search(ctx, term, []string{"name", "contactPerson", "email", "phone", "company"})
}

// Active returns suppliers with isActive true.
func (s *Suppliers) Active(ctx context.Context) ([]core.Record, error) {
	return s.Query(ctx, core.Q().Where("isActive", true))
}

// ByCity returns suppliers in the given city.
func (s *Suppliers) ByCity(ctx context.Context, city string) ([]core.Record, error) {
	return s.Query(ctx, core.Q().Where("city", city))
}

// ByState returns suppliers in the given state.
func (s *Suppliers) ByState(ctx context.Context, state string) ([]core.Record, error) {
	return s.Query(ctx, core.Q().Where("state", state))
}

// Products returns the products sourced from the given supplier.
func (s *Suppliers) Products(ctx context.Context, supplierID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(supplierID)
	if !ok {
		return nil, nil
	}
	return s.products.Query(ctx, core.Q().Where("supplierId", id))
}

// SetActive toggles a supplier's isActive flag.
func (s *Suppliers) SetActive(ctx context.Context, supplierID interface{}, active bool) error {
	id, ok := core.ToInt(supplierID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := s.Update(ctx, core.Record{"isActive": active}, core.Q().Where(core.FieldID, id))
	return err
}

// Recent returns the most recently added suppliers.
func (s *Suppliers) Recent(ctx context.Context, limit int) ([]core.Record, error) {
	return s.Query(ctx, core.Q().Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// Stats tallies active and inactive suppliers.
func (s *Suppliers) Stats(ctx context.Context) (SupplierStats, error) {
	total, err := s.Count(ctx, core.Q())
	if err != nil {
		return SupplierStats{}, err
	}
	active, err := s.Count(ctx, core.Q().Where("isActive", true))
	if err != nil {
		return SupplierStats{}, err
	}
	return SupplierStats{Total: total, Active: active, Inactive: total - active}, nil
}
