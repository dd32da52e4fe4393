// Package store implements the generic CRUD and query engine over one
// collection file. Every operation rereads the file so it always reflects
// the latest on-disk state; there is no record cache. A per-store mutex
// serializes the load-mutate-persist cycle, which closes the lost-update
// race between concurrent writers in the same process.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/collection"
	"github.com/backroom-io/backroom/internal/core"
)

// Store owns one collection file and provides entity-kind-agnostic CRUD and
// query primitives over it.
type Store struct {
	mu   sync.RWMutex
	file *collection.File
	sink core.EventSink

	// nextID is an in-process high-water mark for id allocation. The file
	// alone yields max+1, which would reuse an id after the highest record
	// is deleted; the mark keeps allocation strictly increasing for the
	// lifetime of this store instance.
	nextID int64
}

// Option configures a store.
type Option func(*Store)

// WithSink attaches a change-event sink. Publishing is best-effort and never
// fails the mutation.
func WithSink(sink core.EventSink) Option {
	return func(s *Store) { s.sink = sink }
}

// New creates a store over the given collection file. The file need not
// exist; it is created on first write.
func New(file *collection.File, opts ...Option) *Store {
	s := &Store{file: file, nextID: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the collection name.
func (s *Store) Name() string {
	return s.file.Name()
}

// load reads the full collection and returns it along with the next id the
// file contents alone would imply. Callers hold at least a read lock.
func (s *Store) load() ([]core.Record, int64, error) {
	records, err := s.file.Read()
	if err != nil {
		return nil, 0, err
	}
	next := int64(1)
	for _, r := range records {
		if id := r.ID(); id >= next {
			next = id + 1
		}
	}
	return records, next, nil
}

// Load returns the full record sequence as currently on disk. A missing file
// yields an empty sequence.
func (s *Store) Load(ctx context.Context) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, _, err := s.load()
	return records, err
}

// Query returns the records satisfying q, ordered, then sliced by offset and
// limit, in that order.
func (s *Store) Query(ctx context.Context, q core.Query) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	return applyQuery(records, q), nil
}

// FindOne returns the first result of Query, or core.ErrNotFound.
func (s *Store) FindOne(ctx context.Context, q core.Query) (core.Record, error) {
	q.Limit = 1
	results, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, core.ErrNotFound
	}
	return results[0], nil
}

// FindByID returns the record with the given id. The id is integer-coerced;
// an uncoercible id or an absent record yields core.ErrNotFound.
func (s *Store) FindByID(ctx context.Context, id interface{}) (core.Record, error) {
	wanted, ok := core.ToInt(id)
	if !ok {
		return nil, core.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID() == wanted {
			return r, nil
		}
	}
	return nil, core.ErrNotFound
}

// Count returns the number of records satisfying q's predicate. Ordering,
// offset and limit are ignored.
func (s *Store) Count(ctx context.Context, q core.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, _, err := s.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range records {
		if matches(r, q.Conds) {
			n++
		}
	}
	return n, nil
}

// Search returns records where any of the named fields contains term,
// case-insensitively. An empty term returns the full sequence.
func (s *Store) Search(ctx context.Context, term string, fields []string) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	if term == "" {
		return records, nil
	}
	needle := strings.ToLower(term)
	var out []core.Record
	for _, r := range records {
		for _, f := range fields {
			v, ok := r[f]
			if !ok || v == nil {
				continue
			}
			if strings.Contains(strings.ToLower(fmt.Sprintf("%v", v)), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

// FindByDateRange returns records whose named field parses as a timestamp
// within [start, end], inclusive at both ends. Records with an absent or
// unparsable field are excluded.
func (s *Store) FindByDateRange(ctx context.Context, field string, start, end time.Time) ([]core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, _, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for _, r := range records {
		ts, ok := r.Time(field)
		if !ok {
			continue
		}
		if !ts.Before(start) && !ts.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Create allocates the next id, stamps createdAt and updatedAt, appends the
// record and rewrites the collection file. Caller-supplied id or timestamp
// fields are discarded. Ids are never reused, even after deletions.
func (s *Store) Create(ctx context.Context, fields core.Record) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, fileNext, err := s.load()
	if err != nil {
		return nil, err
	}
	if fileNext > s.nextID {
		s.nextID = fileNext
	}

	now := time.Now().UTC().Format(core.TimeFormat)
	rec := fields.Clone()
	delete(rec, core.FieldID)
	delete(rec, core.FieldCreatedAt)
	delete(rec, core.FieldUpdatedAt)
	rec[core.FieldID] = s.nextID
	rec[core.FieldCreatedAt] = now
	rec[core.FieldUpdatedAt] = now

	records = append(records, rec)
	if err := s.file.Write(records); err != nil {
		return nil, err
	}
	s.nextID++

	zap.S().Debugw("record created", "collection", s.Name(), "id", rec.ID())
	s.publish(ctx, core.OpCreate, rec)
	return rec, nil
}

// Update merges fields over every record matching q's predicate, refreshes
// updatedAt, rewrites the file, and returns the count updated. A predicate
// matching zero records fails with core.ErrNoMatch and leaves the file
// untouched.
func (s *Store) Update(ctx context.Context, fields core.Record, q core.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC().Format(core.TimeFormat)
	var updated []core.Record
	count := 0
	for i, r := range records {
		if !matches(r, q.Conds) {
			continue
		}
		merged := r.Merge(fields)
		merged[core.FieldUpdatedAt] = now
		records[i] = merged
		updated = append(updated, merged)
		count++
	}
	if count == 0 {
		return 0, core.ErrNoMatch
	}
	if err := s.file.Write(records); err != nil {
		return 0, err
	}

	zap.S().Debugw("records updated", "collection", s.Name(), "count", count)
	for _, r := range updated {
		s.publish(ctx, core.OpUpdate, r)
	}
	return count, nil
}

// Destroy removes every record matching q's predicate, rewrites the file,
// and returns the count removed. Zero matches fail with core.ErrNoMatch.
// Deletion is physical; there is no tombstoning.
func (s *Store) Destroy(ctx context.Context, q core.Query) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.load()
	if err != nil {
		return 0, err
	}

	var kept []core.Record
	var removed []core.Record
	for _, r := range records {
		if matches(r, q.Conds) {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	if len(removed) == 0 {
		return 0, core.ErrNoMatch
	}
	if err := s.file.Write(kept); err != nil {
		return 0, err
	}

	zap.S().Debugw("records destroyed", "collection", s.Name(), "count", len(removed))
	for _, r := range removed {
		s.publish(ctx, core.OpDelete, r)
	}
	return len(removed), nil
}

// publish emits one change event to the sink, if any. Failures are logged
// and dropped; the mutation has already committed.
func (s *Store) publish(ctx context.Context, op core.OpType, rec core.Record) {
	if s.sink == nil {
		return
	}
	event := core.ChangeEvent{
		ID:         uuid.NewString(),
		Collection: s.Name(),
		Op:         op,
		RecordID:   rec.ID(),
		At:         time.Now().UTC(),
	}
	if op != core.OpDelete {
		event.Fields = rec
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		zap.S().Warnw("change event dropped", "collection", s.Name(), "op", op, "error", err)
	}
}
