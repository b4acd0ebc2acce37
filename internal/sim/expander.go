// Package sim simulates the console hardware in memory. The expander model
// speaks the MCP23017 register protocol over drivers.I2C, so the real driver
// and pin manager run unmodified against it.
package sim

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"

	"github.com/sweeney/shuttle-console/internal/mcp23017"
)

const numRegs = 0x16

var (
	_ drivers.I2C = (*Expander)(nil)
	_ drivers.I2C = (*I2CBus)(nil)
)

// Expander models one MCP23017 with IOCON.BANK=0 and sequential addressing.
// External levels default high, as if every line had its pull-up enabled
// and nothing pressed.
type Expander struct {
	addr uint16

	mu   sync.Mutex
	regs [numRegs]byte
	ext  uint16 // external level per pin, bit n = pin n
	ptr  byte
	fail error
	txs  int
}

// NewExpander returns a chip at addr in its power-on state.
func NewExpander(addr uint16) *Expander {
	e := &Expander{addr: addr, ext: 0xFFFF}
	e.regs[mcp23017.IODIRA] = 0xFF
	e.regs[mcp23017.IODIRB] = 0xFF
	return e
}

// Addr returns the chip's bus address.
func (e *Expander) Addr() uint16 { return e.addr }

// Tx implements drivers.I2C. The first written byte sets the register
// pointer; further bytes are written from there, then r is filled, with the
// pointer advancing after every byte.
func (e *Expander) Tx(addr uint16, w, r []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if addr != e.addr {
		return fmt.Errorf("sim: nack from 0x%02x", addr)
	}
	e.txs++
	if e.fail != nil {
		return e.fail
	}
	if len(w) > 0 {
		e.ptr = w[0] % numRegs
		for _, b := range w[1:] {
			e.store(e.ptr, b)
			e.ptr = (e.ptr + 1) % numRegs
		}
	}
	for i := range r {
		r[i] = e.load(e.ptr)
		e.ptr = (e.ptr + 1) % numRegs
	}
	return nil
}

func (e *Expander) store(reg, v byte) {
	switch reg {
	case mcp23017.GPIOA:
		e.regs[mcp23017.OLATA] = v
	case mcp23017.GPIOB:
		e.regs[mcp23017.OLATB] = v
	default:
		e.regs[reg] = v
	}
}

func (e *Expander) load(reg byte) byte {
	switch reg {
	case mcp23017.GPIOA:
		return e.port(0)
	case mcp23017.GPIOB:
		return e.port(1)
	default:
		return e.regs[reg]
	}
}

// port computes the GPIO register: inputs show the external level (through
// IPOL), outputs show their latch.
func (e *Expander) port(p byte) byte {
	dir := e.regs[mcp23017.IODIRA+p]
	pol := e.regs[mcp23017.IPOLA+p]
	lat := e.regs[mcp23017.OLATA+p]
	ext := byte(e.ext >> (8 * p))
	return ((ext ^ pol) & dir) | (lat &^ dir)
}

// Set changes the external level of pin (0-15).
func (e *Expander) Set(pin int, high bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if high {
		e.ext |= 1 << uint(pin)
	} else {
		e.ext &^= 1 << uint(pin)
	}
}

// Level returns what is on the wire: the latch for outputs, the external
// level for inputs.
func (e *Expander) Level(pin int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, bit := byte(pin/8), byte(1)<<uint(pin%8)
	if e.regs[mcp23017.IODIRA+p]&bit == 0 {
		return e.regs[mcp23017.OLATA+p]&bit != 0
	}
	return e.ext&(1<<uint(pin)) != 0
}

// Reg returns a raw register value.
func (e *Expander) Reg(reg byte) byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.regs[reg%numRegs]
}

// SetFault makes every following transaction fail with err; nil clears it.
func (e *Expander) SetFault(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

// Transactions returns the number of transactions addressed to the chip.
func (e *Expander) Transactions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txs
}

// I2CBus routes transactions to simulated chips by address.
type I2CBus struct {
	mu   sync.RWMutex
	devs map[uint16]drivers.I2C
}

// NewI2CBus attaches the given chips.
func NewI2CBus(chips ...*Expander) *I2CBus {
	b := &I2CBus{devs: make(map[uint16]drivers.I2C)}
	for _, c := range chips {
		b.devs[c.Addr()] = c
	}
	return b
}

// Attach adds a device at addr.
func (b *I2CBus) Attach(addr uint16, dev drivers.I2C) {
	b.mu.Lock()
	b.devs[addr] = dev
	b.mu.Unlock()
}

// Tx forwards to the device at addr, or fails like an unacknowledged address.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.RLock()
	dev, ok := b.devs[addr]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("sim: nack from 0x%02x", addr)
	}
	return dev.Tx(addr, w, r)
}
