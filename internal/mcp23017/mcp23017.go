// Package mcp23017 drives the MCP23017 16-bit I2C I/O expander.
//
// Registers are addressed with IOCON.BANK=0 (the power-on default), so the A
// and B registers of each pair sit next to each other. Every call is a fresh
// bus round-trip: the chip's own registers are the only state.
package mcp23017

import (
	"strconv"
	"sync"

	"tinygo.org/x/drivers"

	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/gpio"
)

// Register map, IOCON.BANK=0.
const (
	IODIRA = 0x00
	IODIRB = 0x01
	IPOLA  = 0x02
	IPOLB  = 0x03
	IOCON  = 0x0A
	GPPUA  = 0x0C
	GPPUB  = 0x0D
	GPIOA  = 0x12
	GPIOB  = 0x13
	OLATA  = 0x14
	OLATB  = 0x15
)

// Bus addresses of the console's three expanders.
const (
	AddressA = 0x20
	AddressB = 0x21
	AddressC = 0x22
)

// Addresses a chip can answer on: 0x20 plus its A2..A0 straps.
const (
	MinAddress = 0x20
	MaxAddress = 0x27
)

// Pins is the number of lines per chip.
const Pins = 16

// Device is one expander on an I2C bus.
type Device struct {
	bus  drivers.I2C
	addr uint16

	mu sync.Mutex
	w  [3]byte
	r  [2]byte
}

// New returns a driver for the chip at addr. No bus traffic happens until the
// first call.
func New(bus drivers.I2C, addr uint16) *Device {
	return &Device{bus: bus, addr: addr}
}

// Addr returns the chip's bus address.
func (d *Device) Addr() uint16 { return d.addr }

// Configure sets every line to input with pull-up and clears input polarity
// inversion, the console's resting wiring.
func (d *Device) Configure() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, reg := range []uint8{IODIRA, GPPUA} {
		if err := d.writeRegs(reg, 0xFF, 0xFF); err != nil {
			return fault.Wrap(fault.BusFailure, d.op("configure"), err)
		}
	}
	if err := d.writeRegs(IPOLA, 0x00, 0x00); err != nil {
		return fault.Wrap(fault.BusFailure, d.op("configure"), err)
	}
	return nil
}

// SetMode sets the direction and pull-up of pin (0-15).
func (d *Device) SetMode(pin int, mode gpio.Mode) error {
	reg, bit, err := locate(d.op("setMode"), pin)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.update(IODIRA+reg, bit, mode != gpio.Output); err != nil {
		return fault.Wrap(fault.BusFailure, d.op("setMode"), err)
	}
	if err := d.update(GPPUA+reg, bit, mode == gpio.InputPullUp); err != nil {
		return fault.Wrap(fault.BusFailure, d.op("setMode"), err)
	}
	return nil
}

// Read returns the raw level of pin (0-15).
func (d *Device) Read(pin int) (bool, error) {
	reg, bit, err := locate(d.op("read"), pin)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.readReg(GPIOA + reg)
	if err != nil {
		return false, fault.Wrap(fault.BusFailure, d.op("read"), err)
	}
	return v&bit != 0, nil
}

// Write sets the output latch of pin (0-15).
func (d *Device) Write(pin int, high bool) error {
	reg, bit, err := locate(d.op("write"), pin)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.update(OLATA+reg, bit, high); err != nil {
		return fault.Wrap(fault.BusFailure, d.op("write"), err)
	}
	return nil
}

// ReadAll returns both GPIO ports in one transaction, port A in the low byte.
func (d *Device) ReadAll() (uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.w[0] = GPIOA
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, fault.Wrap(fault.BusFailure, d.op("readAll"), err)
	}
	return uint16(d.r[0]) | uint16(d.r[1])<<8, nil
}

// locate maps a pin to its port offset (0 for A, 1 for B) and bit mask.
func locate(op string, pin int) (uint8, uint8, error) {
	if pin < 0 || pin >= Pins {
		return 0, 0, fault.New(fault.OutOfRange, op, "pin "+strconv.Itoa(pin))
	}
	if pin < 8 {
		return 0, 1 << uint(pin), nil
	}
	return 1, 1 << uint(pin-8), nil
}

func (d *Device) op(name string) string {
	return "mcp23017@0x" + strconv.FormatUint(uint64(d.addr), 16) + "." + name
}

// update read-modify-writes a single bit of reg. Caller holds d.mu.
func (d *Device) update(reg, bit uint8, set bool) error {
	v, err := d.readReg(reg)
	if err != nil {
		return err
	}
	if set {
		v |= bit
	} else {
		v &^= bit
	}
	return d.writeReg(reg, v)
}

func (d *Device) readReg(reg uint8) (uint8, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, err
	}
	return d.r[0], nil
}

func (d *Device) writeReg(reg, v uint8) error {
	d.w[0], d.w[1] = reg, v
	return d.bus.Tx(d.addr, d.w[:2], nil)
}

// writeRegs writes a register pair using the chip's sequential addressing.
func (d *Device) writeRegs(reg, a, b uint8) error {
	d.w[0], d.w[1], d.w[2] = reg, a, b
	return d.bus.Tx(d.addr, d.w[:3], nil)
}
