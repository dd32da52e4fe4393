// Package report renders aggregate views over the entity collections: sales,
// product, customer, inventory and audit summaries plus the dashboard. Every
// report recomputes from the collections on each call; an optional cache
// holds rendered payloads for a TTL, never the underlying records.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/repo"
)

// Deps are the repositories a Service reads from.
type Deps struct {
	Orders     *repo.Orders
	OrderItems *repo.OrderItems
	Products   *repo.Products
	Customers  *repo.Customers
	Inventory  *repo.Inventory
	Payments   *repo.Payments
	AuditLogs  *repo.AuditLogs
}

// Service renders reports.
type Service struct {
	deps  Deps
	cache core.Cache
	ttl   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores rendered report payloads in c for ttl. A nil cache
// disables caching.
func WithCache(c core.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// New builds a report service over the given repositories.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// groupFold buckets records by key and folds each bucket with fold, starting
// from the zero accumulator.
func groupFold[K comparable, A any](records []core.Record, key func(core.Record) K, fold func(A, core.Record) A) map[K]A {
	out := make(map[K]A)
	for _, r := range records {
		k := key(r)
		out[k] = fold(out[k], r)
	}
	return out
}

// maxBy returns the key with the largest tally, or the zero key when the map
// is empty.
func maxBy[K comparable](tallies map[K]int) K {
	var best K
	bestN := -1
	for k, n := range tallies {
		if n > bestN {
			best, bestN = k, n
		}
	}
	return best
}

// cached serves dest from the cache under key when possible, otherwise
// builds, stores and returns the fresh payload. Both paths round-trip through
// JSON so a hit and a miss yield identical values. Cache failures degrade to
// a fresh render.
func (s *Service) cached(ctx context.Context, key string, dest interface{}, build func() (interface{}, error)) error {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, key)
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, core.ErrCacheMiss) {
			zap.S().Warnw("report: cache get failed", "key", key, "error", err)
		}
	}

	fresh, err := build()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(fresh)
	if err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			zap.S().Warnw("report: cache set failed", "key", key, "error", err)
		}
	}
	return json.Unmarshal(payload, dest)
}

func windowKey(name string, start, end time.Time) string {
	return fmt.Sprintf("report:%s:%d:%d", name, start.UnixMilli(), end.UnixMilli())
}
