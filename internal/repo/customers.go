package repo

import (
	"context"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Customers wraps the Customers collection.
type Customers struct {
	*store.Store
	orders *store.Store
}

// NewCustomers builds the customers repository.
func NewCustomers(customers, orders *store.Store) *Customers {
	return &Customers{Store: customers, orders: orders}
}

// CustomerStats are headline customer counts.
type CustomerStats struct {
	Total    int `json:"totalCustomers"`
	Active   int `json:"activeCustomers"`
	Inactive int `json:"inactiveCustomers"`
}

// Create adds a customer after checking email uniqueness.
func (c *Customers) Create(ctx context.Context, fields core.Record) (core.Record, error) {
	if err := requireUnique(ctx, c.Store, "email", fields["email"], 0); err != nil {
		return nil, err
	}
	return c.Store.Create(ctx, fields)
}

// SearchCustomers matches term against name, contact and company fields.
func (c *Customers) SearchCustomers(ctx context.Context, term string) ([]core.Record, error) {
	return c.Search(ctx, term, []string{"firstName", "lastName", "email", "phone", "company"})
}

// ByCity returns customers in the given city.
func (c *Customers) ByCity(ctx context.Context, city string) ([]core.Record, error) {
	return c.Query(ctx, core.Q().Where("city", city))
}

// ByState returns customers in the given state.
func (c *Customers) ByState(ctx context.Context, state string) ([]core.Record, error) {
	return c.Query(ctx, core.Q().Where("state", state))
}

// Active returns customers with isActive true.
func (c *Customers) Active(ctx context.Context) ([]core.Record, error) {
	return c.Query(ctx, core.Q().Where("isActive", true))
}

// OrderHistory returns the customer's orders, newest first.
func (c *Customers) OrderHistory(ctx context.Context, customerID interface{}) ([]core.Record, error) {
	id, ok := core.ToInt(customerID)
	if !ok {
		return nil, nil
	}
	return c.orders.Query(ctx, core.Q().
		Where("customerId", id).
		Sort(core.FieldCreatedAt, core.Desc))
}

// TotalSpent sums totalAmount over the customer's completed orders.
func (c *Customers) TotalSpent(ctx context.Context, customerID interface{}) (float64, error) {
	id, ok := core.ToInt(customerID)
	if !ok {
		return 0, nil
	}
	orders, err := c.orders.Query(ctx, core.Q().
		Where("customerId", id).
		Where("status", StatusCompleted))
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, order := range orders {
		total += order.Float("totalAmount")
	}
	return total, nil
}

// Recent returns the most recently registered customers.
func (c *Customers) Recent(ctx context.Context, limit int) ([]core.Record, error) {
	return c.Query(ctx, core.Q().Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// ByRegistrationDate returns customers registered within the window.
func (c *Customers) ByRegistrationDate(ctx context.Context, start, end time.Time) ([]core.Record, error) {
	return c.FindByDateRange(ctx, core.FieldCreatedAt, start, end)
}

// SetActive toggles a customer's isActive flag.
func (c *Customers) SetActive(ctx context.Context, customerID interface{}, active bool) error {
	id, ok := core.ToInt(customerID)
	if !ok {
		return core.ErrNotFound
	}
	_, err := c.Update(ctx, core.Record{"isActive": active}, core.Q().Where(core.FieldID, id))
	return err
}

// Stats tallies active and inactive customers.
func (c *Customers) Stats(ctx context.Context) (CustomerStats, error) {
	total, err := c.Count(ctx, core.Q())
	if err != nil {
		return CustomerStats{}, err
	}
	active, err := c.Count(ctx, core.Q().Where("isActive", true))
	if err != nil {
		return CustomerStats{}, err
	}
	return CustomerStats{Total: total, Active: active, Inactive: total - active}, nil
}
