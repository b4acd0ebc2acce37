// Package adcmux drives a 16-channel analog multiplexer (CD74HC4067 style):
// four digital select lines choose which input is routed to a single ADC
// channel.
package adcmux

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/gpio"
)

// Channels is the number of addressable inputs.
const Channels = 16

// Mux routes one of Channels inputs to the common analog line.
type Mux struct {
	mu  sync.Mutex
	sel [4]gpio.Line
	ain gpio.AnalogLine
}

// New configures the select lines as outputs driven low (channel 0).
func New(sel [4]gpio.Line, ain gpio.AnalogLine) (*Mux, error) {
	for i, l := range sel {
		if err := l.Configure(gpio.Output); err != nil {
			return nil, fmt.Errorf("select line %d: %w", i, err)
		}
		if err := l.SetValue(false); err != nil {
			return nil, fmt.Errorf("select line %d: %w", i, err)
		}
	}
	return &Mux{sel: sel, ain: ain}, nil
}

// Read selects channel and samples the common line.
func (m *Mux) Read(channel int) (uint16, error) {
	if err := check("adcmux.read", channel); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.selectChannel(channel); err != nil {
		return 0, fault.Wrap(fault.BusFailure, "adcmux.read", err)
	}
	v, err := m.ain.Read()
	if err != nil {
		return 0, fault.Wrap(fault.BusFailure, "adcmux.read", err)
	}
	return v, nil
}

// Write selects channel and drives the common line.
func (m *Mux) Write(channel int, value uint16) error {
	if err := check("adcmux.write", channel); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.selectChannel(channel); err != nil {
		return fault.Wrap(fault.BusFailure, "adcmux.write", err)
	}
	return m.ain.Write(value)
}

// selectChannel drives select line i with bit i of channel. Lines are set on
// every call; nothing is cached between transactions.
func (m *Mux) selectChannel(channel int) error {
	for i, l := range m.sel {
		if err := l.SetValue(channel&(1<<uint(i)) != 0); err != nil {
			return fmt.Errorf("select line %d: %w", i, err)
		}
	}
	return nil
}

func check(op string, channel int) error {
	if channel < 0 || channel >= Channels {
		return fault.New(fault.OutOfRange, op, "channel "+strconv.Itoa(channel))
	}
	return nil
}
