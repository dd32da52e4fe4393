package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/backroom-io/backroom/internal/core"
)

// Source is where the drainer pulls change events from. The in-memory event
// sink satisfies it.
type Source interface {
	Dequeue(ctx context.Context, batchSize int) ([]core.ChangeEvent, error)
	Size() int
}

// Applier replays a change event into the mirror. MySQLSink satisfies it.
type Applier interface {
	Apply(ctx context.Context, event core.ChangeEvent) error
}

// DrainerConfig tunes the background replication loop.
type DrainerConfig struct {
	// DrainRate is the maximum number of mirror writes per second.
	DrainRate int `yaml:"drain_rate"`

	// BatchSize is how many events to dequeue at once.
	BatchSize int `yaml:"batch_size"`

	// PollInterval is how often to check an empty queue.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultDrainerConfig returns the default drainer settings.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:    50,
		BatchSize:    1,
		PollInterval: 100 * time.Millisecond,
	}
}

// Drainer moves change events from a source to the mirror at a bounded rate,
// protecting the mirror database from write bursts.
type Drainer struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	source Source
	sink   Applier
	config DrainerConfig
}

// NewDrainer creates a drainer between source and sink.
func NewDrainer(source Source, sink Applier, config DrainerConfig) *Drainer {
	defaults := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = defaults.DrainRate
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}

	return &Drainer{
		source: source,
		sink:   sink,
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the drain loop in its own goroutine. Starting a running
// drainer is a no-op.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	zap.S().Infow("mirror: drainer started", "rate", d.config.DrainRate)
	return nil
}

// Stop shuts the drainer down and waits for the loop to exit.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	<-d.doneCh
	zap.S().Infow("mirror: drainer stopped")
	return nil
}

// IsRunning reports whether the drain loop is active.
func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// QueueSize returns the number of events waiting to be mirrored.
func (d *Drainer) QueueSize() int {
	if d.source == nil {
		return 0
	}
	return d.source.Size()
}

func (d *Drainer) run(ctx context.Context) {
	defer close(d.doneCh)

	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), 1)
	drained := 0

	for {
		select {
		case <-d.stopCh:
			zap.S().Debugw("mirror: drain loop exiting", "drained", drained)
			return
		case <-ctx.Done():
			return
		default:
			if d.source.Size() == 0 {
				time.Sleep(d.config.PollInterval)
				continue
			}

			events, err := d.source.Dequeue(ctx, d.config.BatchSize)
			if err != nil {
				zap.S().Warnw("mirror: dequeue failed", "error", err)
				continue
			}

			for _, event := range events {
				if err := limiter.Wait(ctx); err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					zap.S().Warnw("mirror: rate limiter failed", "error", err)
					continue
				}
				if err := d.sink.Apply(ctx, event); err != nil {
					zap.S().Errorw("mirror: apply failed",
						"collection", event.Collection, "op", event.Op, "record", event.RecordID, "error", err)
					continue
				}
				drained++
			}
		}
	}
}
