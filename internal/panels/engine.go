package panels

import (
	"fmt"
	"sync"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Fuel cell and engine events. Fuel cell events are keyed by the cell's
// on/off pin, EngineToggled by the engine switch.
const (
	FuelCellTurnedOn     event.Kind = "FuelCellTurnedOn"
	FuelCellTurnedOff    event.Kind = "FuelCellTurnedOff"
	FuelCellFaulted      event.Kind = "FuelCellFaulted"
	FuelCellClearedFault event.Kind = "FuelCellClearedFault"
	EngineToggled        event.Kind = "EngineToggled"
)

// FuelCellState is how a fuel cell is operating.
type FuelCellState uint8

const (
	CellOff FuelCellState = iota
	CellOn
	CellFaulted
)

func (s FuelCellState) String() string {
	switch s {
	case CellOn:
		return "on"
	case CellFaulted:
		return "faulted"
	default:
		return "off"
	}
}

func (s FuelCellState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// FuelCellEvent is the payload of the fuel cell events.
type FuelCellEvent struct {
	Pin   int           `json:"pin"`
	State FuelCellState `json:"state"`
}

// FuelCell powers the engine. It follows its on/off switch and can be
// faulted while on; pressing its cycle button clears the fault.
type FuelCell struct {
	w     wiring
	onOff int
	cycle int

	mu    sync.Mutex
	state FuelCellState
}

// NewFuelCell wires a cell to its switch and cycle button.
func NewFuelCell(m *pins.Manager, onOffPin, cyclePin int) (*FuelCell, error) {
	c := &FuelCell{onOff: onOffPin, cycle: cyclePin}
	c.w = wiring{pins: m, self: c}
	if err := c.w.digital(event.DigitalChange, onOffPin); err != nil {
		return nil, fmt.Errorf("fuel cell %d: %w", onOffPin, err)
	}
	if err := c.w.digital(event.DigitalFalling, cyclePin); err != nil {
		return nil, fmt.Errorf("fuel cell %d cycle: %w", onOffPin, err)
	}
	return c, nil
}

// Pin returns the on/off pin, which keys the cell's events.
func (c *FuelCell) Pin() int { return c.onOff }

func (c *FuelCell) State() FuelCellState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *FuelCell) Notify(msg event.Message) {
	d, ok := msg.Payload.(event.Digital)
	if !ok {
		return
	}
	switch {
	case msg.Key == event.K(event.DigitalChange, c.onOff):
		if ButtonFor(d.Value) == Pressed {
			c.set(CellOn, FuelCellTurnedOn)
		} else {
			c.set(CellOff, FuelCellTurnedOff)
		}
	case msg.Key == event.K(event.DigitalFalling, c.cycle):
		c.mu.Lock()
		faulted := c.state == CellFaulted
		c.mu.Unlock()
		if faulted {
			c.set(CellOn, FuelCellClearedFault)
		}
	}
}

// Fault faults a running cell. It reports whether the cell was on.
func (c *FuelCell) Fault() bool {
	c.mu.Lock()
	on := c.state == CellOn
	c.mu.Unlock()
	if on {
		c.set(CellFaulted, FuelCellFaulted)
	}
	return on
}

func (c *FuelCell) set(s FuelCellState, kind event.Kind) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.w.publish(kind, c.onOff, FuelCellEvent{Pin: c.onOff, State: s})
}

// Close removes the cell's subscriptions.
func (c *FuelCell) Close() error { return c.w.close() }

// Engine panel pins.
const (
	EnginePin = 28
)

// FuelCellPins lists each cell's on/off and cycle pins.
var FuelCellPins = [4][2]int{{29, 33}, {30, 34}, {31, 35}, {32, 36}}

// Engine is the engine panel: a main switch and four fuel cells.
type Engine struct {
	w     wiring
	cells [4]*FuelCell

	mu sync.Mutex
	on bool
}

// NewEngine wires the engine switch and its fuel cells.
func NewEngine(m *pins.Manager) (*Engine, error) {
	e := &Engine{}
	e.w = wiring{pins: m, self: e}
	for i, p := range FuelCellPins {
		c, err := NewFuelCell(m, p[0], p[1])
		if err != nil {
			e.Close()
			return nil, err
		}
		e.cells[i] = c
	}
	if err := e.w.digital(event.DigitalChange, EnginePin); err != nil {
		e.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

// Cell returns fuel cell i (0-3).
func (e *Engine) Cell(i int) *FuelCell { return e.cells[i] }

// On reports the position of the engine switch.
func (e *Engine) On() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.on
}

// Running reports whether the engine is switched on with every cell on.
func (e *Engine) Running() bool {
	if !e.On() {
		return false
	}
	for _, c := range e.cells {
		if c.State() != CellOn {
			return false
		}
	}
	return true
}

func (e *Engine) Notify(msg event.Message) {
	d, ok := msg.Payload.(event.Digital)
	if !ok || msg.Key != event.K(event.DigitalChange, EnginePin) {
		return
	}
	state := ButtonFor(d.Value)
	e.mu.Lock()
	e.on = state == Pressed
	e.mu.Unlock()
	e.w.publish(EngineToggled, EnginePin, ButtonEvent{Pin: EnginePin, State: state})
}

// Close removes the engine's and its cells' subscriptions.
func (e *Engine) Close() error {
	err := e.w.close()
	for _, c := range e.cells {
		if c != nil {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}
	return err
}
