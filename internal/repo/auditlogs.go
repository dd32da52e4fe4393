package repo

import (
	"context"
	"time"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/store"
)

// AuditLogs wraps the AuditLogs collection: append-oriented records of who
// did what to which entity. Entries carry action, entityType, entityId,
// userId and a free-form details string.
type AuditLogs struct {
	*store.Store
	users *store.Store
}

// NewAuditLogs builds the audit-log repository.
func NewAuditLogs(auditLogs, users *store.Store) *AuditLogs {
	return &AuditLogs{Store: auditLogs, users: users}
}

// Entry describes one audit event. IP and UserAgent are optional request
// context captured by outer layers.
type Entry struct {
	Action     string
	EntityType string
	EntityID   int64
	UserID     int64
	Details    string
	IP         string
	UserAgent  string
}

// Append writes one audit entry.
func (a *AuditLogs) Append(ctx context.Context, e Entry) (core.Record, error) {
	return a.Create(ctx, core.Record{
		"action":     e.Action,
		"entityType": e.EntityType,
		"entityId":   e.EntityID,
		"userId":     e.UserID,
		"details":    e.Details,
		"ipAddress":  e.IP,
		"userAgent":  e.UserAgent,
	})
}

// Log appends one audit entry without request context.
func (a *AuditLogs) Log(ctx context.Context, action, entityType string, entityID, userID int64, details string) (core.Record, error) {
	return a.Append(ctx, Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Details:    details,
	})
}

// WithUser returns entries with their user joined, newest first.
func (a *AuditLogs) WithUser(ctx context.Context, limit int) ([]core.Record, error) {
	entries, err := a.Query(ctx, core.Q().Sort(core.FieldCreatedAt, core.Desc).Take(limit))
	if err != nil {
		return nil, err
	}
	users, err := a.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexByID(users)
	out := make([]core.Record, len(entries))
	for i, entry := range entries {
		out[i] = attach(entry, "user", "userId", idx)
	}
	return out, nil
}

// ByUser returns a user's entries, newest first.
func (a *AuditLogs) ByUser(ctx context.Context, userID interface{}, limit int) ([]core.Record, error) {
	id, ok := core.ToInt(userID)
	if !ok {
		return nil, nil
	}
	return a.Query(ctx, core.Q().Where("userId", id).Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// ByEntity returns the entries touching one entity, newest first.
func (a *AuditLogs) ByEntity(ctx context.Context, entityType string, entityID interface{}, limit int) ([]core.Record, error) {
	id, ok := core.ToInt(entityID)
	if !ok {
		return nil, nil
	}
	return a.Query(ctx, core.Q().
		Where("entityType", entityType).
		Where("entityId", id).
		Sort(core.FieldCreatedAt, core.Desc).
		Take(limit))
}

// ByAction returns entries for one action, newest first.
func (a *AuditLogs) ByAction(ctx context.Context, action string, limit int) ([]core.Record, error) {
	return a.Query(ctx, core.Q().Where("action", action).Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// ByDateRange returns the window's entries by creation time.
func (a *AuditLogs) ByDateRange(ctx context.Context, start, end time.Time) ([]core.Record, error) {
	return a.FindByDateRange(ctx, core.FieldCreatedAt, start, end)
}

// Recent returns the most recent entries.
func (a *AuditLogs) Recent(ctx context.Context, limit int) ([]core.Record, error) {
	return a.Query(ctx, core.Q().Sort(core.FieldCreatedAt, core.Desc).Take(limit))
}

// SearchLogs matches term against action, entity type and details.
func (a *AuditLogs) SearchLogs(ctx context.Context, term string) ([]core.Record, error) {
	return a.Search(ctx, term, []string{"action", "entityType", "details"})
}
