package mqtt

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
)

// DefaultQueue is the bridge's queue length when none is given.
const DefaultQueue = 256

// Bridge taps a bus and forwards every message to a Publisher from its own
// goroutine, so a slow broker never stalls a sampling pass. When the queue is
// full the message is dropped and counted.
type Bridge struct {
	pub    Publisher
	queue  chan Event
	skip   map[event.Kind]bool
	now    func() time.Time
	logger *log.Logger

	dropped atomic.Uint64
	sent    atomic.Uint64
	failed  atomic.Uint64
}

// NewBridge creates a bridge with a queue of size messages. Messages of the
// skipped kinds are not forwarded. A nil logger uses log.Default().
func NewBridge(pub Publisher, size int, logger *log.Logger, skip ...event.Kind) *Bridge {
	if size <= 0 {
		size = DefaultQueue
	}
	if logger == nil {
		logger = log.Default()
	}
	b := &Bridge{
		pub:    pub,
		queue:  make(chan Event, size),
		skip:   make(map[event.Kind]bool, len(skip)),
		now:    time.Now,
		logger: logger,
	}
	for _, k := range skip {
		b.skip[k] = true
	}
	return b
}

// Notify enqueues msg without blocking. The bridge is registered with
// Bus.Tap.
func (b *Bridge) Notify(msg event.Message) {
	if b.skip[msg.Key.Kind] {
		return
	}
	select {
	case b.queue <- Event{Timestamp: b.now(), Key: msg.Key, Payload: msg.Payload}:
	default:
		if b.dropped.Add(1) == 1 {
			b.logger.Printf("mqtt: queue full (%d messages), dropping", cap(b.queue))
		}
	}
}

// Run publishes queued events until ctx is done, then flushes what is left.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-b.queue:
					b.publish(ev)
				default:
					return nil
				}
			}
		case ev := <-b.queue:
			b.publish(ev)
		}
	}
}

func (b *Bridge) publish(ev Event) {
	if err := b.pub.Publish(ev); err != nil {
		b.failed.Add(1)
		b.logger.Printf("mqtt: publish %s: %v", ev.Key, err)
		return
	}
	b.sent.Add(1)
}

// Dropped returns how many messages were lost to a full queue.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Sent returns how many events were published successfully.
func (b *Bridge) Sent() uint64 { return b.sent.Load() }

// Failed returns how many publishes returned an error.
func (b *Bridge) Failed() uint64 { return b.failed.Load() }
