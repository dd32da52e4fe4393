package report

import (
	"context"
	"sort"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
)

// ProductSalesRow is one product's quantity and revenue within a window.
type ProductSalesRow struct {
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku"`
	Quantity  int64   `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

// SalesReport summarizes a window of orders. Revenue and the average count
// only completed orders; TotalOrders counts every order in the window.
type SalesReport struct {
	StartDate         string            `json:"startDate"`
	EndDate           string            `json:"endDate"`
	TotalOrders       int               `json:"totalOrders"`
	CompletedOrders   int               `json:"completedOrders"`
	TotalRevenue      float64           `json:"totalRevenue"`
	AverageOrderValue float64           `json:"averageOrderValue"`
	OrdersByStatus    map[string]int    `json:"ordersByStatus"`
	TopProducts       []ProductSalesRow `json:"topProducts"`
}

// Sales renders the sales report for [start, end].
func (s *Service) Sales(ctx context.Context, start, end time.Time) (SalesReport, error) {
	var out SalesReport
	err := s.cached(ctx, windowKey("sales", start, end), &out, func() (interface{}, error) {
		fresh, err := s.buildSales(ctx, start, end)
		return fresh, err
	})
	return out, err
}

func (s *Service) buildSales(ctx context.Context, start, end time.Time) (SalesReport, error) {
	orders, err := s.deps.Orders.ByDateRange(ctx, start, end)
	if err != nil {
		return SalesReport{}, err
	}

	out := SalesReport{
		StartDate:      start.UTC().Format(core.TimeFormat),
		EndDate:        end.UTC().Format(core.TimeFormat),
		TotalOrders:    len(orders),
		OrdersByStatus: map[string]int{},
	}

	completed := make(map[int64]bool)
	for _, order := range orders {
		out.OrdersByStatus[order.String("status")]++
		if order.String("status") == repo.StatusCompleted {
			completed[order.ID()] = true
			out.CompletedOrders++
			out.TotalRevenue += order.Float("totalAmount")
		}
	}
	if out.CompletedOrders > 0 {
		out.AverageOrderValue = out.TotalRevenue / float64(out.CompletedOrders)
	}

	rows, err := s.productRows(ctx, completed)
	if err != nil {
		return SalesReport{}, err
	}
	if len(rows) > 10 {
		rows = rows[:10]
	}
	out.TopProducts = rows
	return out, nil
}

// productRows folds the order items belonging to the given orders into
// per-product rows, highest revenue first.
func (s *Service) productRows(ctx context.Context, orderIDs map[int64]bool) ([]ProductSalesRow, error) {
	items, err := s.deps.OrderItems.Load(ctx)
	if err != nil {
		return nil, err
	}
	var inWindow []core.Record
	for _, item := range items {
		if orderIDs[item.Int("orderId")] {
			inWindow = append(inWindow, item)
		}
	}

	byProduct := groupFold(inWindow,
		func(r core.Record) int64 { return r.Int("productId") },
		func(acc ProductSalesRow, r core.Record) ProductSalesRow {
			acc.Quantity += r.Int("quantity")
			acc.Revenue += float64(r.Int("quantity")) * r.Float("unitPrice")
			return acc
		})

	products, err := s.deps.Products.Load(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]core.Record, len(products))
	for _, p := range products {
		names[p.ID()] = p
	}

	rows := make([]ProductSalesRow, 0, len(byProduct))
	for id, row := range byProduct {
		row.ProductID = id
		if p, ok := names[id]; ok {
			row.Name = p.String("name")
			row.SKU = p.String("sku")
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Revenue > rows[j].Revenue })
	return rows, nil
}

// ProductReport renders per-product sales over completed orders in the
// window, every product included, highest revenue first.
func (s *Service) ProductReport(ctx context.Context, start, end time.Time) ([]ProductSalesRow, error) {
	var out []ProductSalesRow
	err := s.cached(ctx, windowKey("products", start, end), &out, func() (interface{}, error) {
		orders, err := s.deps.Orders.ByDateRange(ctx, start, end)
		if err != nil {
			return nil, err
		}
		completed := make(map[int64]bool)
		for _, order := range orders {
			if order.String("status") == repo.StatusCompleted {
				completed[order.ID()] = true
			}
		}
		rows, err := s.productRows(ctx, completed)
		return rows, err
	})
	return out, err
}
