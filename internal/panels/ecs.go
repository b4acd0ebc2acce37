package panels

import (
	"fmt"
	"sync"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Environmental control events. CabinPressureChanged is keyed by the ON pin.
const (
	AirflowToggled       event.Kind = "AirflowToggled"
	PressurePressed      event.Kind = "PressurePressed"
	OxygenToggled        event.Kind = "OxygenToggled"
	VoidWastePressed     event.Kind = "VoidWastePressed"
	CabinPressureChanged event.Kind = "CabinPressureChanged"
)

// ECS panel pins.
const (
	AirflowPin           = 21
	PressurePin          = 22
	OxygenPin            = 23
	VoidWastePin         = 24
	CabinPressureOnPin   = 25
	CabinPressureOffPin  = 26
	CabinPressureHoldPin = 27
)

// CabinPressure is the position of the three-way cabin pressure selector.
type CabinPressure uint8

const (
	CabinOff CabinPressure = iota
	CabinOn
	CabinHold
)

func (c CabinPressure) String() string {
	switch c {
	case CabinOn:
		return "on"
	case CabinHold:
		return "hold"
	default:
		return "off"
	}
}

func (c CabinPressure) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// CabinPressureEvent is the payload of CabinPressureChanged.
type CabinPressureEvent struct {
	State CabinPressure `json:"state"`
}

// ECS is the environmental control systems panel.
type ECS struct {
	w wiring

	mu      sync.Mutex
	airflow Button
	oxygen  Button
	cabin   CabinPressure
}

// NewECS wires the ECS panel.
func NewECS(m *pins.Manager) (*ECS, error) {
	e := &ECS{}
	e.w = wiring{pins: m, self: e}
	for pin := AirflowPin; pin <= CabinPressureHoldPin; pin++ {
		if err := e.w.digital(event.DigitalChange, pin); err != nil {
			return nil, fmt.Errorf("ecs: %w", err)
		}
	}
	return e, nil
}

// CabinPressure returns the selector position.
func (e *ECS) CabinPressure() CabinPressure {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cabin
}

// Airflow returns the airflow switch state.
func (e *ECS) Airflow() Button {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.airflow
}

// Oxygen returns the oxygen switch state.
func (e *ECS) Oxygen() Button {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.oxygen
}

func (e *ECS) Notify(msg event.Message) {
	d, ok := msg.Payload.(event.Digital)
	if !ok {
		return
	}
	state := ButtonFor(d.Value)
	pin := d.Address
	switch pin {
	case AirflowPin:
		e.mu.Lock()
		e.airflow = state
		e.mu.Unlock()
		e.w.publish(AirflowToggled, pin, ButtonEvent{Pin: pin, State: state})

	case OxygenPin:
		e.mu.Lock()
		e.oxygen = state
		e.mu.Unlock()
		e.w.publish(OxygenToggled, pin, ButtonEvent{Pin: pin, State: state})

	case PressurePin:
		if state == Pressed {
			e.w.publish(PressurePressed, pin, ButtonEvent{Pin: pin, State: state})
		}

	case VoidWastePin:
		if state == Pressed {
			e.w.publish(VoidWastePressed, pin, ButtonEvent{Pin: pin, State: state})
		}

	case CabinPressureOnPin, CabinPressureOffPin, CabinPressureHoldPin:
		if state != Pressed {
			return
		}
		c := map[int]CabinPressure{
			CabinPressureOnPin:   CabinOn,
			CabinPressureOffPin:  CabinOff,
			CabinPressureHoldPin: CabinHold,
		}[pin]
		e.mu.Lock()
		e.cabin = c
		e.mu.Unlock()
		e.w.publish(CabinPressureChanged, CabinPressureOnPin, CabinPressureEvent{State: c})
	}
}

// Close removes the panel's subscriptions.
func (e *ECS) Close() error { return e.w.close() }
