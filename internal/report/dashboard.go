package report

import (
	"context"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
)

// Dashboard is the headline view rendered on the back-office landing page.
type Dashboard struct {
	TodayOrders     int     `json:"todayOrders"`
	TodayRevenue    float64 `json:"todayRevenue"`
	PendingOrders   int     `json:"pendingOrders"`
	TotalProducts   int     `json:"totalProducts"`
	TotalCustomers  int     `json:"totalCustomers"`
	TotalOrders     int     `json:"totalOrders"`
	InventoryAlerts int     `json:"inventoryAlerts"`
}

// GetDashboard renders today's activity, overall totals and the inventory
// alert count. Today's revenue counts completed orders only.
func (s *Service) GetDashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := s.cached(ctx, "report:dashboard", &out, func() (interface{}, error) {
		today, err := s.deps.Orders.Today(ctx)
		if err != nil {
			return nil, err
		}
		d := Dashboard{TodayOrders: len(today)}
		for _, order := range today {
			if order.String("status") == repo.StatusCompleted {
				d.TodayRevenue += order.Float("totalAmount")
			}
		}

		if d.PendingOrders, err = s.deps.Orders.Count(ctx, core.Q().Where("status", repo.StatusPending)); err != nil {
			return nil, err
		}
		if d.TotalProducts, err = s.deps.Products.Count(ctx, core.Q()); err != nil {
			return nil, err
		}
		if d.TotalCustomers, err = s.deps.Customers.Count(ctx, core.Q()); err != nil {
			return nil, err
		}
		if d.TotalOrders, err = s.deps.Orders.Count(ctx, core.Q()); err != nil {
			return nil, err
		}

		alerts, err := s.deps.Inventory.GetAlerts(ctx)
		if err != nil {
			return nil, err
		}
		d.InventoryAlerts = alerts.TotalAlerts
		return d, nil
	})
	return out, err
}
