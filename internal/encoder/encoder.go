// Package encoder turns four digital lines into a 16-position rotary encoder.
//
// Line p1 carries the most significant bit and p4 the least. Lines are pulled
// up, so each raw level is inverted before packing: all lines high is
// position 0. The code is read directly, so a pass that catches two bits
// mid-transition reports the intermediate code; there is no Gray-code
// correction.
package encoder

import (
	"fmt"
	"sync"

	"github.com/sweeney/shuttle-console/internal/event"
)

// Source is the part of the pin manager an encoder needs.
type Source interface {
	Bus() *event.Bus
	DigitalRead(addr int) (bool, error)
	SubscribeDigitalChange(addr int, l event.Listener) error
	UnsubscribeDigitalChange(addr int, l event.Listener) error
}

// Encoder tracks the position of one encoder and publishes EncoderChange
// keyed by its first line.
type Encoder struct {
	src   Source
	addrs [4]int

	mu       sync.Mutex
	bits     [4]bool // raw levels, p1 first
	position int
}

// New subscribes to DigitalChange on p1..p4. The encoder starts at position 0
// (all lines released); call Sync to seed it from the hardware.
func New(src Source, p1, p2, p3, p4 int) (*Encoder, error) {
	e := &Encoder{
		src:   src,
		addrs: [4]int{p1, p2, p3, p4},
		bits:  [4]bool{true, true, true, true},
	}
	for i, addr := range e.addrs {
		if err := src.SubscribeDigitalChange(addr, e); err != nil {
			for _, done := range e.addrs[:i] {
				src.UnsubscribeDigitalChange(done, e)
			}
			return nil, fmt.Errorf("encoder p%d (pin %d): %w", i+1, addr, err)
		}
	}
	return e, nil
}

// Key is the key this encoder publishes under.
func (e *Encoder) Key() event.Key { return event.K(event.EncoderChange, e.addrs[0]) }

// Addresses returns p1..p4.
func (e *Encoder) Addresses() [4]int { return e.addrs }

// Position returns the current position, 0-15.
func (e *Encoder) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Notify handles DigitalChange on one of the encoder's lines.
func (e *Encoder) Notify(msg event.Message) {
	p, ok := msg.Payload.(event.Digital)
	if !ok {
		return
	}
	e.mu.Lock()
	i := e.index(p.Address)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	e.bits[i] = p.Value
	pos := pack(e.bits)
	changed := pos != e.position
	e.position = pos
	e.mu.Unlock()

	if changed {
		e.src.Bus().Publish(e.Key(), event.Encoder{Position: pos})
	}
}

// Sync reads all four lines directly and sets the position without
// publishing.
func (e *Encoder) Sync() error {
	var bits [4]bool
	for i, addr := range e.addrs {
		v, err := e.src.DigitalRead(addr)
		if err != nil {
			return fmt.Errorf("encoder sync p%d: %w", i+1, err)
		}
		bits[i] = v
	}
	e.mu.Lock()
	e.bits = bits
	e.position = pack(bits)
	e.mu.Unlock()
	return nil
}

// Close unsubscribes from all four lines.
func (e *Encoder) Close() error {
	var first error
	for _, addr := range e.addrs {
		if err := e.src.UnsubscribeDigitalChange(addr, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (e *Encoder) index(addr int) int {
	for i, a := range e.addrs {
		if a == addr {
			return i
		}
	}
	return -1
}

func pack(bits [4]bool) int {
	pos := 0
	for i, high := range bits {
		if !high {
			pos |= 1 << uint(3-i)
		}
	}
	return pos
}

// Delta returns the shortest signed step from one position to another on a
// 16-position ring, in [-8, 7].
func Delta(from, to int) int {
	d := ((to-from)%16 + 16) % 16
	if d >= 8 {
		d -= 16
	}
	return d
}
