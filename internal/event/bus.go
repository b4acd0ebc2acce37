package event

import (
	"log"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sweeney/shuttle-console/internal/fault"
)

// Stats counts bus activity since construction.
type Stats struct {
	Published      uint64 // Publish calls
	Delivered      uint64 // listener invocations, taps excluded
	ListenerFaults uint64 // panics recovered from listeners and taps
}

// Bus maps keys to ordered listener lists. It is safe for concurrent use;
// dispatch works on a snapshot taken under the lock and runs without it, so
// listeners may subscribe, unsubscribe or publish from inside Notify.
type Bus struct {
	mu   sync.Mutex
	subs map[Key][]Listener
	taps []Listener

	logger  *log.Logger
	verbose atomic.Bool

	published atomic.Uint64
	delivered atomic.Uint64
	faults    atomic.Uint64
}

// NewBus creates an empty bus. A nil logger uses log.Default().
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		subs:   make(map[Key][]Listener),
		logger: logger,
	}
}

// SetVerbose enables a log line per publish.
func (b *Bus) SetVerbose(v bool) { b.verbose.Store(v) }

// Subscribe registers l under key. Subscribing the same pair twice leaves the
// registry unchanged and reports fault.AlreadySubscribed.
func (b *Bus) Subscribe(key Key, l Listener) error {
	if err := checkListener("event.subscribe", l); err != nil {
		return err
	}

	b.mu.Lock()
	ls := b.subs[key]
	if indexOf(ls, l) >= 0 {
		b.mu.Unlock()
		b.logger.Printf("event: subscribe %s: %v", key, fault.AlreadySubscribed)
		return fault.New(fault.AlreadySubscribed, "event.subscribe", key.String())
	}
	b.subs[key] = append(ls, l)
	b.mu.Unlock()
	return nil
}

// Unsubscribe removes exactly the (key, l) entry, or reports
// fault.NotSubscribed if it is absent.
func (b *Bus) Unsubscribe(key Key, l Listener) error {
	b.mu.Lock()
	ls := b.subs[key]
	i := indexOf(ls, l)
	if i < 0 {
		b.mu.Unlock()
		b.logger.Printf("event: unsubscribe %s: %v", key, fault.NotSubscribed)
		return fault.New(fault.NotSubscribed, "event.unsubscribe", key.String())
	}
	// Copy rather than shift in place: a dispatch in flight may hold the old slice.
	next := make([]Listener, 0, len(ls)-1)
	next = append(next, ls[:i]...)
	next = append(next, ls[i+1:]...)
	if len(next) == 0 {
		delete(b.subs, key)
	} else {
		b.subs[key] = next
	}
	b.mu.Unlock()
	return nil
}

// Tap registers an observer of every published message regardless of key.
// Taps run after the key's listeners and must not block.
func (b *Bus) Tap(l Listener) error {
	if err := checkListener("event.tap", l); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if indexOf(b.taps, l) >= 0 {
		return fault.New(fault.AlreadySubscribed, "event.tap", "")
	}
	b.taps = append(b.taps, l)
	return nil
}

// Untap removes a tap registered with Tap.
func (b *Bus) Untap(l Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := indexOf(b.taps, l)
	if i < 0 {
		return fault.New(fault.NotSubscribed, "event.untap", "")
	}
	next := make([]Listener, 0, len(b.taps)-1)
	next = append(next, b.taps[:i]...)
	b.taps = append(next, b.taps[i+1:]...)
	return nil
}

// Publish delivers payload to every listener registered under key at the
// moment of the call, in subscription order, and returns how many were
// invoked. A panicking listener is logged and skipped.
func (b *Bus) Publish(key Key, payload any) int {
	b.mu.Lock()
	ls := b.subs[key]
	taps := b.taps
	b.mu.Unlock()

	msg := Message{Key: key, Payload: payload}
	for _, l := range ls {
		b.deliver(l, msg)
	}
	for _, l := range taps {
		b.deliver(l, msg)
	}

	b.published.Add(1)
	b.delivered.Add(uint64(len(ls)))
	if b.verbose.Load() {
		b.logger.Printf("event: sent %s to %d recipients", key, len(ls))
	}
	return len(ls)
}

// Count returns the number of listeners registered under key.
func (b *Bus) Count(key Key) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}

// Stats returns a copy of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:      b.published.Load(),
		Delivered:      b.delivered.Load(),
		ListenerFaults: b.faults.Load(),
	}
}

func (b *Bus) deliver(l Listener, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.faults.Add(1)
			b.logger.Printf("event: %s: %v: %T panicked: %v", msg.Key, fault.ListenerFault, l, r)
		}
	}()
	l.Notify(msg)
}

// checkListener rejects listeners that cannot be told apart by ==.
func checkListener(op string, l Listener) error {
	if l == nil {
		return fault.New(fault.Unsupported, op, "nil listener")
	}
	if !reflect.TypeOf(l).Comparable() {
		return fault.New(fault.Unsupported, op, reflect.TypeOf(l).String()+" is not comparable")
	}
	return nil
}

// indexOf returns the position of l in ls, or -1. Listeners of an
// incomparable type never match.
func indexOf(ls []Listener, l Listener) int {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return -1
	}
	for i, x := range ls {
		if x == l {
			return i
		}
	}
	return -1
}
