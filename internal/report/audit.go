package report

import (
	"context"
	"time"

	"github.com/backroom-io/backroom/internal/core"
)

// AuditSummary tallies a window of audit entries.
type AuditSummary struct {
	TotalEntries     int            `json:"totalEntries"`
	ByAction         map[string]int `json:"byAction"`
	ByEntityType     map[string]int `json:"byEntityType"`
	ByUser           map[int64]int  `json:"byUser"`
	MostActiveUser   int64          `json:"mostActiveUser"`
	MostCommonAction string         `json:"mostCommonAction"`
}

// Audit renders the audit summary for [start, end].
func (s *Service) Audit(ctx context.Context, start, end time.Time) (AuditSummary, error) {
	var out AuditSummary
	err := s.cached(ctx, windowKey("audit", start, end), &out, func() (interface{}, error) {
		entries, err := s.deps.AuditLogs.ByDateRange(ctx, start, end)
		if err != nil {
			return nil, err
		}

		summary := AuditSummary{
			TotalEntries: len(entries),
			ByAction: groupFold(entries,
				func(r core.Record) string { return r.String("action") },
				func(n int, _ core.Record) int { return n + 1 }),
			ByEntityType: groupFold(entries,
				func(r core.Record) string { return r.String("entityType") },
				func(n int, _ core.Record) int { return n + 1 }),
			ByUser: groupFold(entries,
				func(r core.Record) int64 { return r.Int("userId") },
				func(n int, _ core.Record) int { return n + 1 }),
		}
		summary.MostActiveUser = maxBy(summary.ByUser)
		summary.MostCommonAction = maxBy(summary.ByAction)
		return summary, nil
	})
	return out, err
}
