package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backroom-io/backroom/internal/core"
)

func TestMemorySinkFIFO(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink(10)
	defer sink.Close()

	for i := int64(1); i <= 3; i++ {
		err := sink.Publish(ctx, core.ChangeEvent{
			Collection: "products",
			Op:         core.OpCreate,
			RecordID:   i,
			At:         time.Now().UTC(),
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, sink.Size())

	events, err := sink.Dequeue(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.EqualValues(t, 1, events[0].RecordID)
	assert.EqualValues(t, 2, events[1].RecordID)

	events, err = sink.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.EqualValues(t, 3, events[0].RecordID)
}

func TestMemorySinkFull(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink(1)
	defer sink.Close()

	require.NoError(t, sink.Publish(ctx, core.ChangeEvent{Collection: "orders", Op: core.OpCreate}))
	err := sink.Publish(ctx, core.ChangeEvent{Collection: "orders", Op: core.OpCreate})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestMemorySinkClosed(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink(1)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close(), "double close is a no-op")

	err := sink.Publish(ctx, core.ChangeEvent{Collection: "orders", Op: core.OpDelete})
	assert.ErrorIs(t, err, ErrQueueClosed)

	events, err := sink.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
