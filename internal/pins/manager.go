// Package pins owns the console's flat pin address space: 64 digital and 18
// analog addresses spread over three I2C expanders, the local I/O bank and an
// analog multiplexer. A Manager routes direct reads and writes, runs the
// sampling pass and publishes edge events on the event bus.
package pins

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/gpio"
)

// Mode re-exports the line configuration accepted by SetPinMode.
type Mode = gpio.Mode

const (
	Input       = gpio.Input
	InputPullUp = gpio.InputPullUp
	Output      = gpio.Output
)

// Expander is a 16-line digital chip (local pins 0-15).
type Expander interface {
	SetMode(pin int, mode gpio.Mode) error
	Read(pin int) (bool, error)
	Write(pin int, high bool) error
}

// Mux is the analog multiplexer (channels 0-15).
type Mux interface {
	Read(channel int) (uint16, error)
	Write(channel int, value uint16) error
}

// Local is the local I/O bank, addressed by console address for digital lines
// and by ADC channel (1, 2) for analog ones.
type Local interface {
	SetMode(addr int, mode gpio.Mode) error
	Read(addr int) (bool, error)
	Write(addr int, high bool) error
	ReadAnalog(ch int) (uint16, error)
	WriteAnalog(ch int, value uint16) error
}

// Config wires a Manager to its hardware. A nil collaborator reports
// fault.Unsupported for every address it would serve.
type Config struct {
	Bus       *event.Bus
	Expanders [3]Expander // A, B, C
	Local     Local
	Mux       Mux
	Logger    *log.Logger
}

// Stats counts sampling activity.
type Stats struct {
	Passes       uint64
	ReadFailures uint64
	Events       uint64 // messages published by sampling passes
	LastPass     time.Duration
}

type cache struct {
	digital [MaxDigital + 1]bool
	dseen   [MaxDigital + 1]bool
	analog  [MaxAnalog + 1]uint16
	aseen   [MaxAnalog + 1]bool
}

// Manager is the pin core. Direct reads and writes are safe from any
// goroutine. Sampling passes are serialised; listeners run inside the pass
// and must not call Sample.
type Manager struct {
	bus    *event.Bus
	chips  [3]Expander
	local  Local
	mux    Mux
	logger *log.Logger

	pass    sync.Mutex
	work    cache // mutated only inside a pass
	failing [2][MaxDigital + 1]bool

	mu        sync.RWMutex
	committed cache
	stats     Stats
}

// New creates a Manager. A nil Bus gets a private one.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}
	return &Manager{
		bus:    bus,
		chips:  cfg.Expanders,
		local:  cfg.Local,
		mux:    cfg.Mux,
		logger: logger,
	}
}

// Bus returns the bus edge events are published on.
func (m *Manager) Bus() *event.Bus { return m.bus }

func outOfRange(op string, addr int) error {
	return fault.New(fault.OutOfRange, op, "address "+strconv.Itoa(addr))
}

func unwired(op string, t target) error {
	return fault.New(fault.Unsupported, op, t.String()+" not wired")
}

func (m *Manager) chip(t target) Expander {
	switch t {
	case chipA:
		return m.chips[0]
	case chipB:
		return m.chips[1]
	case chipC:
		return m.chips[2]
	}
	return nil
}

// SetPinMode configures the line behind a digital address.
func (m *Manager) SetPinMode(addr int, mode Mode) error {
	const op = "pins.setPinMode"
	t, idx := digitalRoute(addr)
	switch t {
	case none:
		return outOfRange(op, addr)
	case reserved:
		return nil
	case local:
		if m.local == nil {
			return unwired(op, t)
		}
		return m.local.SetMode(idx, mode)
	}
	c := m.chip(t)
	if c == nil {
		return unwired(op, t)
	}
	return c.SetMode(idx, mode)
}

// DigitalRead returns the raw level of addr straight from the hardware,
// bypassing the sample cache. Reserved addresses read 0.
func (m *Manager) DigitalRead(addr int) (bool, error) {
	const op = "pins.digitalRead"
	t, idx := digitalRoute(addr)
	switch t {
	case none:
		return false, outOfRange(op, addr)
	case reserved:
		return false, nil
	case local:
		if m.local == nil {
			return false, unwired(op, t)
		}
		return m.local.Read(idx)
	}
	c := m.chip(t)
	if c == nil {
		return false, unwired(op, t)
	}
	return c.Read(idx)
}

// DigitalWrite drives addr. Writes to reserved addresses are ignored.
func (m *Manager) DigitalWrite(addr int, high bool) error {
	const op = "pins.digitalWrite"
	t, idx := digitalRoute(addr)
	switch t {
	case none:
		return outOfRange(op, addr)
	case reserved:
		return nil
	case local:
		if m.local == nil {
			return unwired(op, t)
		}
		return m.local.Write(idx, high)
	}
	c := m.chip(t)
	if c == nil {
		return unwired(op, t)
	}
	return c.Write(idx, high)
}

// AnalogRead samples addr straight from the hardware.
func (m *Manager) AnalogRead(addr int) (uint16, error) {
	const op = "pins.analogRead"
	t, ch := analogRoute(addr)
	switch t {
	case mux:
		if m.mux == nil {
			return 0, unwired(op, t)
		}
		return m.mux.Read(ch)
	case localADC:
		if m.local == nil {
			return 0, unwired(op, t)
		}
		return m.local.ReadAnalog(ch)
	}
	return 0, outOfRange(op, addr)
}

// AnalogWrite drives addr where the hardware supports output.
func (m *Manager) AnalogWrite(addr int, value uint16) error {
	const op = "pins.analogWrite"
	t, ch := analogRoute(addr)
	switch t {
	case mux:
		if m.mux == nil {
			return unwired(op, t)
		}
		return m.mux.Write(ch, value)
	case localADC:
		if m.local == nil {
			return unwired(op, t)
		}
		return m.local.WriteAnalog(ch, value)
	}
	return outOfRange(op, addr)
}

// Sample runs one sampling pass: digital 1..64 in ascending order, then
// analog 1..16, 47, 48. The first successful read of an address seeds the
// cache silently. A changed digital value publishes DigitalFalling (new level
// 0, the active level under pull-up wiring) or DigitalRising, then
// DigitalChange. A changed analog value publishes AnalogChange. Listeners run
// synchronously before the next address is read. A failed read leaves that
// address unchanged for this pass.
func (m *Manager) Sample() {
	m.pass.Lock()
	defer m.pass.Unlock()

	start := time.Now()
	var events, failures uint64

	for addr := 1; addr <= MaxDigital; addr++ {
		v, err := m.DigitalRead(addr)
		if !m.track(0, "digital", addr, err) {
			failures++
			continue
		}
		if !m.work.dseen[addr] {
			m.work.dseen[addr] = true
			m.work.digital[addr] = v
			continue
		}
		if m.work.digital[addr] == v {
			continue
		}
		m.work.digital[addr] = v

		edge := event.DigitalRising
		if !v {
			edge = event.DigitalFalling
		}
		payload := event.Digital{Address: addr, Value: v}
		m.bus.Publish(event.K(edge, addr), payload)
		m.bus.Publish(event.K(event.DigitalChange, addr), payload)
		events += 2
	}

	for _, addr := range AnalogAddresses {
		v, err := m.AnalogRead(addr)
		if !m.track(1, "analog", addr, err) {
			failures++
			continue
		}
		if !m.work.aseen[addr] {
			m.work.aseen[addr] = true
			m.work.analog[addr] = v
			continue
		}
		if m.work.analog[addr] == v {
			continue
		}
		m.work.analog[addr] = v
		m.bus.Publish(event.K(event.AnalogChange, addr), event.Analog{Address: addr, Value: v})
		events++
	}

	m.mu.Lock()
	m.committed = m.work
	m.stats.Passes++
	m.stats.Events += events
	m.stats.ReadFailures += failures
	m.stats.LastPass = time.Since(start)
	m.mu.Unlock()
}

// track logs the first failure of an address and its recovery, so a dead
// chip produces two log lines rather than one per pass. It reports whether
// the read succeeded.
func (m *Manager) track(block int, name string, addr int, err error) bool {
	if err != nil {
		if !m.failing[block][addr] {
			m.failing[block][addr] = true
			m.logger.Printf("pins: %s %d read failed: %v", name, addr, err)
		}
		return false
	}
	if m.failing[block][addr] {
		m.failing[block][addr] = false
		m.logger.Printf("pins: %s %d recovered", name, addr)
	}
	return true
}

// Run performs a pass on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			m.Sample()
		}
	}
}

// Digital returns the level of addr as of the last completed pass. ok is
// false until the address has been sampled.
func (m *Manager) Digital(addr int) (value, ok bool) {
	if addr < 1 || addr > MaxDigital {
		return false, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed.digital[addr], m.committed.dseen[addr]
}

// Analog returns the sample of addr as of the last completed pass.
func (m *Manager) Analog(addr int) (uint16, bool) {
	if addr < 1 || addr > MaxAnalog {
		return 0, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.committed.analog[addr], m.committed.aseen[addr]
}

// Snapshot is a copy of the committed sample cache.
type Snapshot struct {
	Digital map[int]bool
	Analog  map[int]uint16
}

// Snapshot copies every sampled address from the last completed pass.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		Digital: make(map[int]bool, MaxDigital),
		Analog:  make(map[int]uint16, len(AnalogAddresses)),
	}
	for addr := 1; addr <= MaxDigital; addr++ {
		if m.committed.dseen[addr] {
			s.Digital[addr] = m.committed.digital[addr]
		}
	}
	for _, addr := range AnalogAddresses {
		if m.committed.aseen[addr] {
			s.Analog[addr] = m.committed.analog[addr]
		}
	}
	return s
}

// String renders the snapshot as two lines, "digital 1=1 2=0 ..." and
// "analog 1=0 ...", in address order.
func (s Snapshot) String() string {
	var sb strings.Builder
	sb.WriteString("digital")
	for addr := 1; addr <= MaxDigital; addr++ {
		if v, ok := s.Digital[addr]; ok {
			b := 0
			if v {
				b = 1
			}
			fmt.Fprintf(&sb, " %d=%d", addr, b)
		}
	}
	sb.WriteString("\nanalog")
	for _, addr := range AnalogAddresses {
		if v, ok := s.Analog[addr]; ok {
			fmt.Fprintf(&sb, " %d=%d", addr, v)
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

// Stats returns a copy of the sampling counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
