package report

import (
	"context"

	"github.com/backroom-io/backroom/internal/repo"
)

// InventoryReport is the stock summary plus the records needing attention.
type InventoryReport struct {
	Summary repo.Summary `json:"summary"`
	Alerts  repo.Alerts  `json:"alerts"`
}

// Inventory renders the current inventory report. It has no window, so the
// cache key is fixed; the TTL bounds its staleness.
func (s *Service) Inventory(ctx context.Context) (InventoryReport, error) {
	var out InventoryReport
	err := s.cached(ctx, "report:inventory", &out, func() (interface{}, error) {
		summary, err := s.deps.Inventory.GetSummary(ctx)
		if err != nil {
			return nil, err
		}
		alerts, err := s.deps.Inventory.GetAlerts(ctx)
		if err != nil {
			return nil, err
		}
		return InventoryReport{Summary: summary, Alerts: alerts}, nil
	})
	return out, err
}
