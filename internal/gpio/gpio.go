// Package gpio provides the console's directly attached lines: the local
// digital I/O bank, the analog multiplexer's select lines and the ADC
// channels. The real implementation uses the Linux GPIO character device and
// IIO sysfs; the fake implementation allows testing without hardware.
package gpio

import (
	"strconv"

	"github.com/sweeney/shuttle-console/internal/fault"
)

// Mode is the electrical configuration of a digital line.
type Mode uint8

const (
	Input Mode = iota
	InputPullUp
	Output
)

func (m Mode) String() string {
	switch m {
	case Input:
		return "input"
	case InputPullUp:
		return "input-pullup"
	case Output:
		return "output"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode accepts "in", "input", "up", "pullup", "input-pullup", "out" and "output".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "in", "input":
		return Input, true
	case "up", "pullup", "input-pullup":
		return InputPullUp, true
	case "out", "output":
		return Output, true
	default:
		return 0, false
	}
}

// Line is a single digital line.
type Line interface {
	Configure(mode Mode) error
	// Value returns the raw electrical level (true = high).
	Value() (bool, error)
	SetValue(high bool) error
	Close() error
}

// AnalogLine is a single ADC channel, scaled to 16 bits.
type AnalogLine interface {
	Read() (uint16, error)
	Write(value uint16) error
}

// Default wiring on the Raspberry Pi host (BCM offsets on gpiochip0).
// Addresses 33-46 are the local digital bank; the mux select lines follow.
var (
	DefaultLocalOffsets = map[int]int{
		33: 4, 34: 5, 35: 6, 36: 12, 37: 13, 38: 16, 39: 17,
		40: 18, 41: 19, 42: 20, 43: 21, 44: 22, 45: 23, 46: 24,
	}
	DefaultMuxSelect = [4]int{25, 26, 27, 7}
)

// ADC channel numbers on the IIO device: the mux common line and the two
// local analog inputs (console addresses 47 and 48).
const (
	ADCMuxChannel    = 0
	ADCLocalChannel1 = 1
	ADCLocalChannel2 = 2
)

// Bank is the local I/O bank: digital lines keyed by console address and
// analog lines keyed by local ADC channel (1 or 2).
type Bank struct {
	digital map[int]Line
	analog  map[int]AnalogLine
}

// NewBank creates a bank over the given lines. The maps are not copied.
func NewBank(digital map[int]Line, analog map[int]AnalogLine) *Bank {
	return &Bank{digital: digital, analog: analog}
}

func (b *Bank) line(op string, addr int) (Line, error) {
	l, ok := b.digital[addr]
	if !ok {
		return nil, fault.New(fault.OutOfRange, op, "local pin "+strconv.Itoa(addr))
	}
	return l, nil
}

// SetMode configures the line wired to addr.
func (b *Bank) SetMode(addr int, mode Mode) error {
	l, err := b.line("gpio.setMode", addr)
	if err != nil {
		return err
	}
	return fault.Wrap(fault.BusFailure, "gpio.setMode", l.Configure(mode))
}

// Read returns the raw level of the line wired to addr.
func (b *Bank) Read(addr int) (bool, error) {
	l, err := b.line("gpio.read", addr)
	if err != nil {
		return false, err
	}
	v, err := l.Value()
	if err != nil {
		return false, fault.Wrap(fault.BusFailure, "gpio.read", err)
	}
	return v, nil
}

// Write drives the line wired to addr.
func (b *Bank) Write(addr int, high bool) error {
	l, err := b.line("gpio.write", addr)
	if err != nil {
		return err
	}
	if err := l.SetValue(high); err != nil {
		if fault.Of(err) == fault.Unsupported {
			return err
		}
		return fault.Wrap(fault.BusFailure, "gpio.write", err)
	}
	return nil
}

// ReadAnalog samples local ADC channel ch.
func (b *Bank) ReadAnalog(ch int) (uint16, error) {
	a, ok := b.analog[ch]
	if !ok {
		return 0, fault.New(fault.OutOfRange, "gpio.readAnalog", "channel "+strconv.Itoa(ch))
	}
	v, err := a.Read()
	if err != nil {
		return 0, fault.Wrap(fault.BusFailure, "gpio.readAnalog", err)
	}
	return v, nil
}

// WriteAnalog drives local ADC channel ch where the hardware allows it.
func (b *Bank) WriteAnalog(ch int, value uint16) error {
	a, ok := b.analog[ch]
	if !ok {
		return fault.New(fault.OutOfRange, "gpio.writeAnalog", "channel "+strconv.Itoa(ch))
	}
	return a.Write(value)
}

// Close releases every digital line, returning the first error.
func (b *Bank) Close() error {
	var first error
	for _, l := range b.digital {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
