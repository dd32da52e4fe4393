package events

import (
	"context"

	"go.uber.org/multierr"

	"github.com/backroom-io/backroom/internal/core"
)

// FanoutSink publishes each event to every wrapped sink. One sink failing
// does not stop delivery to the others.
type FanoutSink struct {
	sinks []core.EventSink
}

// NewFanoutSink combines sinks into one. With no sinks it is a no-op.
func NewFanoutSink(sinks ...core.EventSink) *FanoutSink {
	return &FanoutSink{sinks: sinks}
}

// Publish delivers the event to every sink, combining any errors.
func (f *FanoutSink) Publish(ctx context.Context, event core.ChangeEvent) error {
	var err error
	for _, sink := range f.sinks {
		err = multierr.Append(err, sink.Publish(ctx, event))
	}
	return err
}

// Close closes every sink, combining any errors.
func (f *FanoutSink) Close() error {
	var err error
	for _, sink := range f.sinks {
		err = multierr.Append(err, sink.Close())
	}
	return err
}
