package report

import (
	"context"
	"sort"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
)

// CustomerRow is one customer's activity within a window.
type CustomerRow struct {
	CustomerID int64   `json:"customerId"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	OrderCount int     `json:"orderCount"`
	TotalSpent float64 `json:"totalSpent"`
}

// CustomerReport summarizes the customer base and the window's top spenders.
type CustomerReport struct {
	TotalCustomers  int           `json:"totalCustomers"`
	ActiveCustomers int           `json:"activeCustomers"`
	NewCustomers    int           `json:"newCustomers"`
	TopCustomers    []CustomerRow `json:"topCustomers"`
}

// Customers renders the customer report for [start, end]. Spending counts
// completed orders only; NewCustomers counts registrations in the window.
func (s *Service) Customers(ctx context.Context, start, end time.Time) (CustomerReport, error) {
	var out CustomerReport
	err := s.cached(ctx, windowKey("customers", start, end), &out, func() (interface{}, error) {
		fresh, err := s.buildCustomers(ctx, start, end)
		return fresh, err
	})
	return out, err
}

func (s *Service) buildCustomers(ctx context.Context, start, end time.Time) (CustomerReport, error) {
	var out CustomerReport

	total, err := s.deps.Customers.Count(ctx, core.Q())
	if err != nil {
		return out, err
	}
	active, err := s.deps.Customers.Count(ctx, core.Q().Where("isActive", true))
	if err != nil {
		return out, err
	}
	registered, err := s.deps.Customers.FindByDateRange(ctx, core.FieldCreatedAt, start, end)
	if err != nil {
		return out, err
	}
	out.TotalCustomers = total
	out.ActiveCustomers = active
	out.NewCustomers = len(registered)

	orders, err := s.deps.Orders.ByDateRange(ctx, start, end)
	if err != nil {
		return out, err
	}
	type spend struct {
		count int
		total float64
	}
	byCustomer := groupFold(orders,
		func(r core.Record) int64 { return r.Int("customerId") },
		func(acc spend, r core.Record) spend {
			if r.String("status") == repo.StatusCompleted {
				acc.count++
				acc.total += r.Float("totalAmount")
			}
			return acc
		})

	customers, err := s.deps.Customers.Load(ctx)
	if err != nil {
		return out, err
	}
	details := make(map[int64]core.Record, len(customers))
	for _, c := range customers {
		details[c.ID()] = c
	}

	rows := make([]CustomerRow, 0, len(byCustomer))
	for id, sp := range byCustomer {
		if sp.count == 0 {
			continue
		}
		row := CustomerRow{CustomerID: id, OrderCount: sp.count, TotalSpent: sp.total}
		if c, ok := details[id]; ok {
			row.Name = c.String("firstName") + " " + c.String("lastName")
			row.Email = c.String("email")
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalSpent > rows[j].TotalSpent })
	if len(rows) > 10 {
		rows = rows[:10]
	}
	out.TopCustomers = rows
	return out, nil
}
