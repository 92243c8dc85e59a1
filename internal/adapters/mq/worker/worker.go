// Package worker drains the live feed queue and fans events out to
// subscribers.
//
// A single worker preserves submission order on the feed.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// Event is what workers read off the queue.
type Event = model.Event

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Broadcaster delivers an event to every current subscriber and reports how
// many received it.
type Broadcaster interface {
	Broadcast(ctx context.Context, e Event) int
}

// Worker is a long-running consumer.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// Dispatcher implements Worker for the live feed.
type Dispatcher struct {
	queue Queue
	sink  Broadcaster
	name  string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher reading q and writing to sink.
func NewDispatcher(q Queue, sink Broadcaster, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    q,
		sink:     sink,
		name:     "feed-dispatcher",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named(d.name)
	}
	return d
}

// Run starts the dispatch loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	events := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			d.dispatch(ctx, event)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event Event) { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	n := d.sink.Broadcast(ctx, event)
	metrics.RecordFeedDelivered()
	d.logger.Debug(ctx, "feed event dispatched",
		logger.String("kind", event.Kind),
		logger.Int("subscribers", n),
	)
}

// Shutdown stops the dispatcher. Safe to call more than once.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() { close(d.shutdown) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
