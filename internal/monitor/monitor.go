// Package monitor logs pin activity and keeps the status tracker current.
package monitor

import (
	"errors"
	"fmt"
	"log"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/pins"
	"github.com/sweeney/shuttle-console/internal/status"
)

// Sink receives levels and counts. *status.Tracker implements it.
type Sink interface {
	SetLevels(s pins.Snapshot)
	SetDigital(addr int, v bool)
	SetAnalog(addr int, v uint16)
	SetEncoder(addr, pos int)
	Count(kind event.Kind)
}

var _ Sink = (*status.Tracker)(nil)

// Options tune what the monitor logs.
type Options struct {
	// LogAnalog logs every analog change. Off by default: noisy inputs
	// change on most passes.
	LogAnalog bool
	// LogPanels logs the events panels publish.
	LogPanels bool
}

// Monitor subscribes to DigitalChange on every digital address and
// AnalogChange on every analog address, and taps the bus to count every kind.
type Monitor struct {
	pins   *pins.Manager
	sink   Sink
	logger *log.Logger
	opts   Options
	tap    *event.FuncListener
	keys   []event.Key
}

// New attaches a monitor to m. A nil logger uses log.Default().
func New(m *pins.Manager, sink Sink, logger *log.Logger, opts Options) (*Monitor, error) {
	if logger == nil {
		logger = log.Default()
	}
	mon := &Monitor{pins: m, sink: sink, logger: logger, opts: opts}
	mon.tap = event.Func(mon.observe)

	for addr := 1; addr <= pins.MaxDigital; addr++ {
		if err := m.SubscribeDigitalChange(addr, mon); err != nil {
			mon.Close()
			return nil, fmt.Errorf("monitor digital %d: %w", addr, err)
		}
		mon.keys = append(mon.keys, event.K(event.DigitalChange, addr))
	}
	for _, addr := range pins.AnalogAddresses {
		if err := m.SubscribeAnalogChange(addr, mon); err != nil {
			mon.Close()
			return nil, fmt.Errorf("monitor analog %d: %w", addr, err)
		}
		mon.keys = append(mon.keys, event.K(event.AnalogChange, addr))
	}
	if err := m.Bus().Tap(mon.tap); err != nil {
		mon.Close()
		return nil, fmt.Errorf("monitor tap: %w", err)
	}
	return mon, nil
}

// Seed copies the manager's committed cache into the sink. Call it after the
// first sampling pass.
func (mon *Monitor) Seed() {
	mon.sink.SetLevels(mon.pins.Snapshot())
}

func (mon *Monitor) Notify(msg event.Message) {
	switch p := msg.Payload.(type) {
	case event.Digital:
		mon.logger.Printf("monitor: digital %d -> %d", p.Address, status.Level(p.Value))
		mon.sink.SetDigital(p.Address, p.Value)
	case event.Analog:
		if mon.opts.LogAnalog {
			mon.logger.Printf("monitor: analog %d -> %d", p.Address, p.Value)
		}
		mon.sink.SetAnalog(p.Address, p.Value)
	}
}

func (mon *Monitor) observe(msg event.Message) {
	mon.sink.Count(msg.Key.Kind)
	switch p := msg.Payload.(type) {
	case event.Encoder:
		mon.logger.Printf("monitor: encoder %d at %d", msg.Key.Address, p.Position)
		mon.sink.SetEncoder(msg.Key.Address, p.Position)
	case event.Digital, event.Analog:
	default:
		if mon.opts.LogPanels {
			mon.logger.Printf("monitor: %s %+v", msg.Key, msg.Payload)
		}
	}
}

// Close removes the monitor's subscriptions and tap.
func (mon *Monitor) Close() error {
	var errs []error
	for _, k := range mon.keys {
		errs = append(errs, mon.pins.Bus().Unsubscribe(k, mon))
	}
	mon.keys = nil
	if err := mon.pins.Bus().Untap(mon.tap); fault.Of(err) != fault.NotSubscribed {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
