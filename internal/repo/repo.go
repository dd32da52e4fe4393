// Package repo contains the entity-specific repositories: thin wrappers over
// the store adding named queries, uniqueness checks and domain invariants
// per entity kind, plus the fixed set of cross-collection joins.
//
// Uniqueness rules (SKU, email, username) are check-then-create: the check
// and the write are two separate store calls, so two concurrent creates can
// both pass the check. The file store has no uniqueness authority that could
// close that window; callers needing a hard guarantee must serialize
// externally.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// Pagination bounds a listing request after coercion.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// CoercePage converts loosely-typed page/limit values (query-string strings,
// JSON numbers, nil) into a sane Pagination. Page defaults to 1, limit to
// defLimit, and limit is capped at maxLimit.
func CoercePage(page, limit interface{}, defLimit, maxLimit int) Pagination {
	p, ok := core.ToInt(page)
	if !ok || p < 1 {
		p = 1
	}
	l, ok := core.ToInt(limit)
	if !ok || l < 1 {
		l = int64(defLimit)
	}
	if maxLimit > 0 && l > int64(maxLimit) {
		l = int64(maxLimit)
	}
	return Pagination{
		Page:   int(p),
		Limit:  int(l),
		Offset: (int(p) - 1) * int(l),
	}
}

// requireUnique fails with core.ErrConflict when another record (excluding
// excludeID, 0 for none) already holds value in field.
func requireUnique(ctx context.Context, s *store.Store, field string, value interface{}, excludeID int64) error {
	if value == nil || value == "" {
		return nil
	}
	existing, err := s.FindOne(ctx, core.Q().Where(field, value))
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if excludeID != 0 && existing.ID() == excludeID {
		return nil
	}
	return fmt.Errorf("%s %q already exists in %s: %w", field, fmt.Sprintf("%v", value), s.Name(), core.ErrConflict)
}

// indexByID builds a lookup from record id to record.
func indexByID(records []core.Record) map[int64]core.Record {
	idx := make(map[int64]core.Record, len(records))
	for _, r := range records {
		idx[r.ID()] = r
	}
	return idx
}

// attach joins one related record onto a copy of r under key, by matching
// r's fkField against the index. A missing match attaches nil; that is a
// valid state, not an error.
func attach(r core.Record, key, fkField string, idx map[int64]core.Record) core.Record {
	out := r.Clone()
	if related, ok := idx[r.Int(fkField)]; ok {
		out[key] = map[string]interface{}(related)
	} else {
		out[key] = nil
	}
	return out
}
