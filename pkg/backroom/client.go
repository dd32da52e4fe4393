// Package backroom is the public facade over the document store, the entity
// repositories and the report service.
//
// Typical usage:
//
//	client, _ := backroom.NewClient(backroom.DefaultConfig())
//	defer client.Close()
//
//	client.Start(ctx) // only needed when the mirror is enabled
//	product, _ := client.Products().Create(ctx, core.Record{...})
//	sales, _ := client.Reports().Sales(ctx, start, end)
package backroom

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/cache"
	"github.com/backroom-io/backroom/internal/collection"
	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/events"
	"github.com/backroom-io/backroom/internal/mirror"
	"github.com/backroom-io/backroom/internal/report"
	"github.com/backroom-io/backroom/internal/repo"
	"github.com/backroom-io/backroom/internal/store"
)

// Collection names. Each maps to one JSON file under the data directory.
const (
	ColProducts   = "products"
	ColCategories = "categories"
	ColCustomers  = "customers"
	ColSuppliers  = "suppliers"
	ColOrders     = "orders"
	ColOrderItems = "orderItems"
	ColInventory  = "inventory"
	ColPayments   = "payments"
	ColUsers      = "users"
	ColAuditLogs  = "auditLogs"
)

// Client wires the stores, repositories, report service and the optional
// cache, change feed and mirror together from one Config.
type Client struct {
	mu     sync.Mutex
	config *Config

	stores map[string]*store.Store
	sink   core.EventSink

	cache       core.Cache
	feed        *events.MemorySink
	mirrorQueue *events.MemorySink
	mirrorSink  *mirror.MySQLSink
	drainer     *mirror.Drainer

	reports *report.Service
	started bool
	closed  bool
}

// NewClient builds a client from the configuration. Optional subsystems that
// are disabled in the config are simply absent; nothing else changes.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required")
	}

	c := &Client{
		config: config,
		stores: make(map[string]*store.Store),
	}

	if config.Cache.Enabled {
		reportCache, err := cache.Create(config.Cache.Backend)
		if err != nil {
			return nil, fmt.Errorf("failed to create report cache: %w", err)
		}
		c.cache = reportCache
	}

	var sinks []core.EventSink
	if config.Events.Enabled {
		switch config.Events.Transport {
		case "", "memory":
			c.feed = events.NewMemorySink(config.Events.BufferSize)
			sinks = append(sinks, c.feed)
		case "kafka":
			kafkaSink, err := events.NewKafkaSink(config.Events.Kafka)
			if err != nil {
				c.closePartial()
				return nil, fmt.Errorf("failed to create kafka change feed: %w", err)
			}
			sinks = append(sinks, kafkaSink)
		default:
			c.closePartial()
			return nil, fmt.Errorf("unknown events transport %q", config.Events.Transport)
		}
	}
	if config.Mirror.Enabled {
		mysqlSink, err := mirror.NewMySQLSink(config.Mirror.MySQL)
		if err != nil {
			c.closePartial()
			return nil, fmt.Errorf("failed to connect mirror: %w", err)
		}
		c.mirrorSink = mysqlSink
		c.mirrorQueue = events.NewMemorySink(config.Mirror.BufferSize)
		c.drainer = mirror.NewDrainer(c.mirrorQueue, c.mirrorSink, config.Mirror.Drainer)
		sinks = append(sinks, c.mirrorQueue)
	}
	switch len(sinks) {
	case 0:
	case 1:
		c.sink = sinks[0]
	default:
		c.sink = events.NewFanoutSink(sinks...)
	}

	return c, nil
}

// closePartial releases whatever NewClient managed to open before failing.
func (c *Client) closePartial() {
	if c.cache != nil {
		_ = c.cache.Close()
	}
	if c.feed != nil {
		_ = c.feed.Close()
	}
	if c.mirrorSink != nil {
		_ = c.mirrorSink.Close()
	}
}

// Store returns the store for a collection, opening it on first use.
func (c *Client) Store(name string) *store.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeLocked(name)
}

func (c *Client) storeLocked(name string) *store.Store {
	if s, ok := c.stores[name]; ok {
		return s
	}
	var opts []store.Option
	if c.sink != nil {
		opts = append(opts, store.WithSink(c.sink))
	}
	s := store.New(collection.New(c.config.DataDir, name), opts...)
	c.stores[name] = s
	return s
}

// Products returns the products repository.
func (c *Client) Products() *repo.Products {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewProducts(c.storeLocked(ColProducts), c.storeLocked(ColCategories), c.storeLocked(ColOrderItems))
}

// Categories returns the categories repository.
func (c *Client) Categories() *repo.Categories {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewCategories(c.storeLocked(ColCategories), c.storeLocked(ColProducts))
}

// Customers returns the customers repository.
func (c *Client) Customers() *repo.Customers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewCustomers(c.storeLocked(ColCustomers), c.storeLocked(ColOrders))
}

// Suppliers returns the suppliers repository.
func (c *Client) Suppliers() *repo.Suppliers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewSuppliers(c.storeLocked(ColSuppliers), c.storeLocked(ColProducts))
}

// Orders returns the orders repository.
func (c *Client) Orders() *repo.Orders {
	c.mu.Lock()
	defer c.mu.Unlock()
	products := repo.NewProducts(c.storeLocked(ColProducts), c.storeLocked(ColCategories), c.storeLocked(ColOrderItems))
	return repo.NewOrders(c.storeLocked(ColOrders), c.storeLocked(ColOrderItems),
		c.storeLocked(ColCustomers), c.storeLocked(ColUsers), products)
}

// OrderItems returns the order-items repository.
func (c *Client) OrderItems() *repo.OrderItems {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewOrderItems(c.storeLocked(ColOrderItems), c.storeLocked(ColOrders), c.storeLocked(ColProducts))
}

// Inventory returns the inventory repository.
func (c *Client) Inventory() *repo.Inventory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewInventory(c.storeLocked(ColInventory), c.storeLocked(ColProducts))
}

// Payments returns the payments repository.
func (c *Client) Payments() *repo.Payments {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewPayments(c.storeLocked(ColPayments))
}

// Users returns the users repository.
func (c *Client) Users() *repo.Users {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewUsers(c.storeLocked(ColUsers))
}

// AuditLogs returns the audit-log repository.
func (c *Client) AuditLogs() *repo.AuditLogs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repo.NewAuditLogs(c.storeLocked(ColAuditLogs), c.storeLocked(ColUsers))
}

// Reports returns the report service, built once.
func (c *Client) Reports() *report.Service {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reports == nil {
		deps := report.Deps{
			Orders: repo.NewOrders(c.storeLocked(ColOrders), c.storeLocked(ColOrderItems),
				c.storeLocked(ColCustomers), c.storeLocked(ColUsers),
				repo.NewProducts(c.storeLocked(ColProducts), c.storeLocked(ColCategories), c.storeLocked(ColOrderItems))),
			OrderItems: repo.NewOrderItems(c.storeLocked(ColOrderItems), c.storeLocked(ColOrders), c.storeLocked(ColProducts)),
			Products:   repo.NewProducts(c.storeLocked(ColProducts), c.storeLocked(ColCategories), c.storeLocked(ColOrderItems)),
			Customers:  repo.NewCustomers(c.storeLocked(ColCustomers), c.storeLocked(ColOrders)),
			Inventory:  repo.NewInventory(c.storeLocked(ColInventory), c.storeLocked(ColProducts)),
			Payments:   repo.NewPayments(c.storeLocked(ColPayments)),
			AuditLogs:  repo.NewAuditLogs(c.storeLocked(ColAuditLogs), c.storeLocked(ColUsers)),
		}
		var opts []report.Option
		if c.cache != nil {
			opts = append(opts, report.WithCache(c.cache, c.config.Reports.CacheTTL))
		}
		c.reports = report.New(deps, opts...)
	}
	return c.reports
}

// Pagination coerces loose page/limit inputs using the configured defaults.
func (c *Client) Pagination(page, limit interface{}) repo.Pagination {
	return repo.CoercePage(page, limit, c.config.Pagination.DefaultLimit, c.config.Pagination.MaxLimit)
}

// ChangeFeed returns the in-memory change feed, or nil when the feed is
// disabled or running over Kafka.
func (c *Client) ChangeFeed() *events.MemorySink {
	return c.feed
}

// Start launches the mirror drainer. Without a mirror it is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.drainer == nil {
		c.started = true
		return nil
	}
	if err := c.drainer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mirror drainer: %w", err)
	}
	c.started = true
	return nil
}

// Stop halts the mirror drainer, waiting for in-flight writes.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	if c.drainer == nil {
		return nil
	}
	return c.drainer.Stop()
}

// Resync rebuilds a collection's mirror table from the current file
// contents. Fails when the mirror is disabled.
func (c *Client) Resync(ctx context.Context, name string) error {
	if c.mirrorSink == nil {
		return fmt.Errorf("mirror is not enabled")
	}
	records, err := c.Store(name).Load(ctx)
	if err != nil {
		return err
	}
	return c.mirrorSink.Resync(ctx, name, records)
}

// Close stops the drainer and releases the cache, feed and mirror.
func (c *Client) Close() error {
	if err := c.Stop(); err != nil {
		zap.S().Warnw("backroom: error stopping drainer on close", "error", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var err error
	if c.sink != nil {
		err = multierr.Append(err, c.sink.Close())
	}
	if c.cache != nil {
		err = multierr.Append(err, c.cache.Close())
	}
	if c.mirrorSink != nil {
		err = multierr.Append(err, c.mirrorSink.Close())
	}
	return err
}
