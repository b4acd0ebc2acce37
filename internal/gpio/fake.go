package gpio

import (
	"sync"

	"github.com/sweeney/shuttle-console/internal/fault"
)

// FakeLine is a test double for a digital line. Inputs follow Level, which
// tests (or the simulator) set directly; outputs read back what was written.
type FakeLine struct {
	mu sync.Mutex

	Mode  Mode
	Level bool // external level seen when configured as an input
	Out   bool // last value written

	// Writes counts SetValue calls.
	Writes int
	Closed bool

	// ReadError and WriteError, if set, are returned by Value and SetValue.
	ReadError  error
	WriteError error
}

// NewFakeLine creates an input line resting at the given level.
func NewFakeLine(level bool) *FakeLine {
	return &FakeLine{Level: level}
}

func (f *FakeLine) Configure(mode Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Mode = mode
	return nil
}

// Value returns Out for output lines and Level otherwise.
func (f *FakeLine) Value() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if f.Mode == Output {
		return f.Out, nil
	}
	return f.Level, nil
}

// SetValue records high on an output line. Like a real line, an input
// rejects the write with fault.Unsupported.
func (f *FakeLine) SetValue(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	if f.Mode != Output {
		return fault.New(fault.Unsupported, "gpio.setValue", "line is not an output")
	}
	f.Out = high
	f.Writes++
	return nil
}

// Set changes the external level seen by an input.
func (f *FakeLine) Set(level bool) {
	f.mu.Lock()
	f.Level = level
	f.mu.Unlock()
}

// Output returns the last written value.
func (f *FakeLine) Output() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Out
}

func (f *FakeLine) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeAnalog is a test double for an ADC channel.
type FakeAnalog struct {
	mu sync.Mutex

	Value uint16
	Reads int

	// OnRead, if set, supplies the value instead of Value. The simulator uses
	// it to answer for whatever the mux select lines currently address.
	OnRead func() uint16

	ReadError  error
	WriteError error
}

func (f *FakeAnalog) Read() (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if f.OnRead != nil {
		return f.OnRead(), nil
	}
	return f.Value, nil
}

func (f *FakeAnalog) Write(v uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Value = v
	return nil
}

// Set changes the sampled value.
func (f *FakeAnalog) Set(v uint16) {
	f.mu.Lock()
	f.Value = v
	f.mu.Unlock()
}

// NewFakeBank creates a bank with a fake line (resting high) for every
// address in addrs and two fake local analog channels.
func NewFakeBank(addrs ...int) (*Bank, map[int]*FakeLine, map[int]*FakeAnalog) {
	lines := make(map[int]*FakeLine, len(addrs))
	digital := make(map[int]Line, len(addrs))
	for _, a := range addrs {
		l := NewFakeLine(true)
		lines[a] = l
		digital[a] = l
	}
	analogs := map[int]*FakeAnalog{
		ADCLocalChannel1: {},
		ADCLocalChannel2: {},
	}
	analog := map[int]AnalogLine{
		ADCLocalChannel1: analogs[ADCLocalChannel1],
		ADCLocalChannel2: analogs[ADCLocalChannel2],
	}
	return NewBank(digital, analog), lines, analogs
}
