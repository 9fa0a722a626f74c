package events

import (
	"fmt"
	"log/slog"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/lehigh-university-libraries/mediapress/internal/metrics"
	"github.com/lehigh-university-libraries/mediapress/internal/models"
)

// TopicTaskUpdate is the topic status events are published on
const TopicTaskUpdate = "task-update"

// DefaultBuffer is the number of queued events before Notify starts dropping
const DefaultBuffer = 256

// Bus delivers task status events to subscribers without blocking the sender.
// Events are dispatched by a single goroutine so subscribers see them in the
// order they were sent.
type Bus struct {
	bus   evbus.Bus
	queue chan models.TaskUpdate
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New starts a bus with the given queue size
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	b := &Bus{
		bus:   evbus.New(),
		queue: make(chan models.TaskUpdate, buffer),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Notify enqueues an update and returns immediately.
// When the queue is full or the bus is closed the update is dropped.
func (b *Bus) Notify(update models.TaskUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Debug("Dropping task update on closed bus", "filename", update.Filename, "status", update.Status)
		return
	}

	select {
	case b.queue <- update:
	default:
		metrics.EventsDroppedTotal.Inc()
		slog.Warn("Event queue full, dropping task update", "filename", update.Filename, "status", update.Status)
	}
}

// Subscribe registers fn for every task update. A panicking subscriber is
// logged and does not affect other subscribers or the sender.
func (b *Bus) Subscribe(fn func(models.TaskUpdate)) error {
	if fn == nil {
		return fmt.Errorf("nil subscriber")
	}
	handler := func(update models.TaskUpdate) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Task update subscriber panicked", "filename", update.Filename, "status", update.Status, "panic", r)
			}
		}()
		fn(update)
	}
	if err := b.bus.Subscribe(TopicTaskUpdate, handler); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

// Close stops accepting updates, delivers what is queued and waits for the
// dispatcher to exit. Calling Close more than once is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for update := range b.queue {
		b.bus.Publish(TopicTaskUpdate, update)
	}
}
