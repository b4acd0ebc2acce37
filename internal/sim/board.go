package sim

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sweeney/shuttle-console/internal/adcmux"
	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/gpio"
	"github.com/sweeney/shuttle-console/internal/mcp23017"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Board is a complete simulated console: three expanders on one I2C bus,
// the local digital bank, the mux select lines with their common analog line,
// and the two local ADC channels.
type Board struct {
	Expanders [3]*Expander
	I2C       *I2CBus
	Lines     map[int]*gpio.FakeLine // local bank, 33-46
	Select    [4]*gpio.FakeLine
	Common    *gpio.FakeAnalog
	ADC       map[int]*gpio.FakeAnalog // local channels 1 and 2

	mu     sync.Mutex
	analog [adcmux.Channels]uint16
}

// NewBoard returns a board at rest: every switch released, every analog
// input at 0.
func NewBoard() *Board {
	b := &Board{
		Expanders: [3]*Expander{
			NewExpander(mcp23017.AddressA),
			NewExpander(mcp23017.AddressB),
			NewExpander(mcp23017.AddressC),
		},
		Lines:  make(map[int]*gpio.FakeLine),
		Common: &gpio.FakeAnalog{},
		ADC: map[int]*gpio.FakeAnalog{
			gpio.ADCLocalChannel1: {},
			gpio.ADCLocalChannel2: {},
		},
	}
	b.I2C = NewI2CBus(b.Expanders[:]...)
	for addr := 33; addr <= 46; addr++ {
		b.Lines[addr] = gpio.NewFakeLine(true)
	}
	for i := range b.Select {
		b.Select[i] = gpio.NewFakeLine(false)
	}
	b.Common.OnRead = b.muxed
	return b
}

// muxed answers for whichever channel the select lines address.
func (b *Board) muxed() uint16 {
	ch := 0
	for i, l := range b.Select {
		if l.Output() {
			ch |= 1 << uint(i)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analog[ch]
}

// Manager builds the real driver stack on top of the board and returns a pin
// manager publishing on bus.
func (b *Board) Manager(bus *event.Bus, logger *log.Logger) (*pins.Manager, error) {
	var chips [3]pins.Expander
	for i, e := range b.Expanders {
		d := mcp23017.New(b.I2C, e.Addr())
		if err := d.Configure(); err != nil {
			return nil, fmt.Errorf("configure expander 0x%02x: %w", e.Addr(), err)
		}
		chips[i] = d
	}

	var sel [4]gpio.Line
	for i, l := range b.Select {
		sel[i] = l
	}
	mx, err := adcmux.New(sel, b.Common)
	if err != nil {
		return nil, fmt.Errorf("analog mux: %w", err)
	}

	digital := make(map[int]gpio.Line, len(b.Lines))
	for addr, l := range b.Lines {
		digital[addr] = l
	}
	analog := make(map[int]gpio.AnalogLine, len(b.ADC))
	for ch, a := range b.ADC {
		analog[ch] = a
	}

	return pins.New(pins.Config{
		Bus:       bus,
		Expanders: chips,
		Local:     gpio.NewBank(digital, analog),
		Mux:       mx,
		Logger:    logger,
	}), nil
}

// Set drives the external level of a digital address.
func (b *Board) Set(addr int, high bool) error {
	switch {
	case addr >= 1 && addr <= 16:
		b.Expanders[0].Set(addr-1, high)
	case addr >= 17 && addr <= 32:
		b.Expanders[1].Set(addr-17, high)
	case addr >= 33 && addr <= 46:
		b.Lines[addr].Set(high)
	case addr >= 49 && addr <= 64:
		b.Expanders[2].Set(addr-49, high)
	default:
		return fault.New(fault.OutOfRange, "sim.set", "address "+strconv.Itoa(addr))
	}
	return nil
}

// Press pulls addr low.
func (b *Board) Press(addr int) error { return b.Set(addr, false) }

// Release lets addr float back high.
func (b *Board) Release(addr int) error { return b.Set(addr, true) }

// Level returns the level on the wire at addr, including driven outputs.
func (b *Board) Level(addr int) (bool, error) {
	switch {
	case addr >= 1 && addr <= 16:
		return b.Expanders[0].Level(addr - 1), nil
	case addr >= 17 && addr <= 32:
		return b.Expanders[1].Level(addr - 17), nil
	case addr >= 33 && addr <= 46:
		v, err := b.Lines[addr].Value()
		return v, err
	case addr == 47 || addr == 48:
		return false, nil
	case addr >= 49 && addr <= 64:
		return b.Expanders[2].Level(addr - 49), nil
	}
	return false, fault.New(fault.OutOfRange, "sim.level", "address "+strconv.Itoa(addr))
}

// SetAnalog sets the input voltage of an analog address.
func (b *Board) SetAnalog(addr int, v uint16) error {
	switch {
	case addr >= 1 && addr <= 16:
		b.mu.Lock()
		b.analog[addr-1] = v
		b.mu.Unlock()
	case addr == 47:
		b.ADC[gpio.ADCLocalChannel1].Set(v)
	case addr == 48:
		b.ADC[gpio.ADCLocalChannel2].Set(v)
	default:
		return fault.New(fault.OutOfRange, "sim.setAnalog", "address "+strconv.Itoa(addr))
	}
	return nil
}

// SetEncoder turns the encoder on lines first..first+3 to pos, driving each
// line low where its bit is set.
func (b *Board) SetEncoder(first, pos int) error {
	if pos < 0 || pos > 15 {
		return fault.New(fault.OutOfRange, "sim.setEncoder", "position "+strconv.Itoa(pos))
	}
	for i := 0; i < 4; i++ {
		if err := b.Set(first+i, pos&(1<<uint(3-i)) == 0); err != nil {
			return err
		}
	}
	return nil
}

// Dump renders every digital level as 1/0 in rows of 16 and every analog
// input, for the shell.
func (b *Board) Dump() string {
	var sb strings.Builder
	for row := 0; row < 4; row++ {
		fmt.Fprintf(&sb, "%2d-%2d ", row*16+1, row*16+16)
		for addr := row*16 + 1; addr <= row*16+16; addr++ {
			v, _ := b.Level(addr)
			if v {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteByte('\n')
	}
	b.mu.Lock()
	values := map[int]uint16{}
	for i, v := range b.analog {
		values[i+1] = v
	}
	b.mu.Unlock()
	values[47], _ = b.ADC[gpio.ADCLocalChannel1].Read()
	values[48], _ = b.ADC[gpio.ADCLocalChannel2].Read()

	addrs := make([]int, 0, len(values))
	for a := range values {
		addrs = append(addrs, a)
	}
	sort.Ints(addrs)
	sb.WriteString("analog")
	for _, a := range addrs {
		fmt.Fprintf(&sb, " %d=%d", a, values[a])
	}
	sb.WriteByte('\n')
	return sb.String()
}
