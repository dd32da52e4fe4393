// Package mirror replicates store mutations into MySQL as a write-behind
// copy for ad-hoc SQL. The JSON collection files stay the system of record;
// the mirror is eventually consistent and safe to drop and resync.
package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/core"
)

// MySQLConfig holds the connection settings for the mirror database.
type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// MySQLSink writes change events into one MySQL table per collection. Each
// table holds the record id and the full document as JSON.
type MySQLSink struct {
	db     *sql.DB
	tables map[string]bool
	closed bool
}

// NewMySQLSink opens the mirror database and verifies the connection.
func NewMySQLSink(config MySQLConfig) (*MySQLSink, error) {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database, config.ConnectTimeout)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping mirror database: %w", err)
	}

	return &MySQLSink{db: db, tables: make(map[string]bool)}, nil
}

// tableFor maps a collection name to its mirror table.
func tableFor(collection string) string {
	return "mirror_" + collection
}

// ensureTable creates the collection's mirror table on first use.
func (m *MySQLSink) ensureTable(ctx context.Context, collection string) error {
	if m.tables[collection] {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGINT NOT NULL,
		doc JSON NOT NULL,
		mirrored_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id)
	)`, tableFor(collection))
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create mirror table for %s: %w", collection, err)
	}
	m.tables[collection] = true
	return nil
}

// Apply replays one change event into the mirror. Creates and updates upsert
// the full document; deletes remove the row.
func (m *MySQLSink) Apply(ctx context.Context, event core.ChangeEvent) error {
	if m.closed {
		return fmt.Errorf("mirror is closed")
	}
	if event.Collection == "" {
		return fmt.Errorf("change event has no collection")
	}
	if err := m.ensureTable(ctx, event.Collection); err != nil {
		return err
	}

	switch event.Op {
	case core.OpCreate, core.OpUpdate:
		doc, err := json.Marshal(event.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		query := fmt.Sprintf(
			"INSERT INTO %s (id, doc) VALUES (?, ?) ON DUPLICATE KEY UPDATE doc = VALUES(doc)",
			tableFor(event.Collection))
		if _, err := m.db.ExecContext(ctx, query, event.RecordID, doc); err != nil {
			return fmt.Errorf("failed to upsert mirror row: %w", err)
		}
	case core.OpDelete:
		query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableFor(event.Collection))
		if _, err := m.db.ExecContext(ctx, query, event.RecordID); err != nil {
			return fmt.Errorf("failed to delete mirror row: %w", err)
		}
	default:
		return fmt.Errorf("unknown change operation %q", event.Op)
	}
	return nil
}

// Resync replaces the collection's mirror table with a full snapshot, in one
// transaction so readers never observe a half-empty table.
func (m *MySQLSink) Resync(ctx context.Context, collection string, records []core.Record) error {
	if m.closed {
		return fmt.Errorf("mirror is closed")
	}
	if err := m.ensureTable(ctx, collection); err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin resync transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", tableFor(collection))); err != nil {
		return fmt.Errorf("failed to clear mirror table: %w", err)
	}
	insert := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", tableFor(collection))
	for _, record := range records {
		doc, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, record.ID(), doc); err != nil {
			return fmt.Errorf("failed to insert mirror row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resync: %w", err)
	}

	zap.S().Infow("mirror: resynced collection", "collection", collection, "records", len(records))
	return nil
}

// Close closes the mirror database connection.
func (m *MySQLSink) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
