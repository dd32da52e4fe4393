package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backroom-io/backroom/internal/core"
	"github.com/backroom-io/backroom/internal/events"
)

// captureApplier records applied events in order.
type captureApplier struct {
	mu      sync.Mutex
	applied []core.ChangeEvent
}

func (c *captureApplier) Apply(_ context.Context, event core.ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = append(c.applied, event)
	return nil
}

func (c *captureApplier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.applied)
}

func TestDrainerMovesEvents(t *testing.T) {
	ctx := context.Background()
	source := events.NewMemorySink(100)
	defer source.Close()
	sink := &captureApplier{}

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, source.Publish(ctx, core.ChangeEvent{
			Collection: "products",
			Op:         core.OpCreate,
			RecordID:   i,
		}))
	}

	d := NewDrainer(source, sink, DrainerConfig{
		DrainRate:    1000,
		BatchSize:    2,
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, d.Start(ctx))
	assert.True(t, d.IsRunning())

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())

	require.Equal(t, 5, sink.count())
	assert.EqualValues(t, 1, sink.applied[0].RecordID, "events drain in order")
	assert.Equal(t, 0, d.QueueSize())
}

func TestDrainerStartStopIdempotent(t *testing.T) {
	ctx := context.Background()
	source := events.NewMemorySink(1)
	defer source.Close()
	d := NewDrainer(source, &captureApplier{}, DrainerConfig{PollInterval: time.Millisecond})

	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Stop())
	require.NoError(t, d.Stop())

	// A stopped drainer can be started again.
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Stop())
}
