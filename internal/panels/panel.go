// Package panels implements the console's control panels on top of the pin
// manager. Each panel subscribes to its pins when constructed, tracks the
// state of its switches and publishes its own events on the manager's bus,
// keyed by the panel's primary pin.
package panels

import (
	"errors"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Button is the state of a momentary or latching switch. Switches are wired
// to pull their line low, so a raw level of 0 is Pressed.
type Button uint8

const (
	Released Button = iota
	Pressed
)

func (b Button) String() string {
	if b == Pressed {
		return "pressed"
	}
	return "released"
}

// MarshalText renders the state by name in JSON payloads.
func (b Button) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// ButtonFor maps a raw level to a button state.
func ButtonFor(level bool) Button {
	if level {
		return Released
	}
	return Pressed
}

// ButtonEvent is the payload of every panel event about a single switch.
type ButtonEvent struct {
	Pin   int    `json:"pin"`
	State Button `json:"state"`
}

// wiring records a panel's subscriptions so Close can undo them.
type wiring struct {
	pins *pins.Manager
	self event.Listener
	keys []event.Key
}

func (w *wiring) digital(kind event.Kind, addrs ...int) error {
	for _, a := range addrs {
		var err error
		switch kind {
		case event.DigitalFalling:
			err = w.pins.SubscribeDigitalFalling(a, w.self)
		case event.DigitalRising:
			err = w.pins.SubscribeDigitalRising(a, w.self)
		default:
			err = w.pins.SubscribeDigitalChange(a, w.self)
		}
		if err != nil {
			w.close()
			return err
		}
		w.keys = append(w.keys, event.K(kind, a))
	}
	return nil
}

func (w *wiring) analog(addrs ...int) error {
	for _, a := range addrs {
		if err := w.pins.SubscribeAnalogChange(a, w.self); err != nil {
			w.close()
			return err
		}
		w.keys = append(w.keys, event.K(event.AnalogChange, a))
	}
	return nil
}

func (w *wiring) bus(key event.Key) error {
	if err := w.pins.Bus().Subscribe(key, w.self); err != nil {
		w.close()
		return err
	}
	w.keys = append(w.keys, key)
	return nil
}

func (w *wiring) close() error {
	var errs []error
	for _, k := range w.keys {
		if err := w.pins.Bus().Unsubscribe(k, w.self); err != nil {
			errs = append(errs, err)
		}
	}
	w.keys = nil
	return errors.Join(errs...)
}

func (w *wiring) publish(kind event.Kind, addr int, payload any) {
	w.pins.Bus().Publish(event.K(kind, addr), payload)
}
