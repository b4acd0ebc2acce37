package panels

import (
	"fmt"
	"sync"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Flight control events. Button events are keyed by their own pin, the
// thruster by the left thruster pin and the joystick by the x-axis address.
const (
	TrackJamPressed       event.Kind = "TrackJamPressed"
	AutoCycleStartPressed event.Kind = "AutoCycleStartPressed"
	SplitNormalPressed    event.Kind = "SplitNormalPressed"
	AutoManualPressed     event.Kind = "AutoManualPressed"
	WarpDriveEngaged      event.Kind = "WarpDriveEngaged"
	StopPressed           event.Kind = "StopPressed"
	OnePressed            event.Kind = "OnePressed"
	TwoPressed            event.Kind = "TwoPressed"
	RCSThrusterToggled    event.Kind = "RCSThrusterToggled"
	YAxisInvertToggled    event.Kind = "YAxisInvertToggled"
	JoystickMoved         event.Kind = "JoystickMoved"
)

// Flight control pins.
const (
	TrackJamPin       = 5
	AutoCycleStartPin = 6
	SplitNormalPin    = 7
	AutoManualPin     = 8
	WarpDrivePin      = 9
	ThrusterLeftPin   = 10
	ThrusterRightPin  = 11
	StopPin           = 12
	OnePin            = 13
	TwoPin            = 14
	YAxisInvertPin    = 15

	JoystickXPin = 1 // analog
	JoystickYPin = 2 // analog
)

// pressKinds maps each momentary button to the event published on press.
var pressKinds = map[int]event.Kind{
	TrackJamPin:       TrackJamPressed,
	AutoCycleStartPin: AutoCycleStartPressed,
	SplitNormalPin:    SplitNormalPressed,
	AutoManualPin:     AutoManualPressed,
	WarpDrivePin:      WarpDriveEngaged,
	StopPin:           StopPressed,
	OnePin:            OnePressed,
	TwoPin:            TwoPressed,
}

// Thruster is the payload of RCSThrusterToggled.
type Thruster struct {
	Direction int `json:"direction"` // -1 left, 0 centre, 1 right
}

// Joystick is the payload of JoystickMoved. Both axes are in [0, 1]; Y is
// mirrored while the invert switch is engaged.
type Joystick struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlightControl is the flight control panel.
type FlightControl struct {
	w wiring

	mu       sync.Mutex
	buttons  map[int]Button
	x, y     float64
	inverted bool
}

// NewFlightControl wires the flight control panel.
func NewFlightControl(m *pins.Manager) (*FlightControl, error) {
	f := &FlightControl{buttons: make(map[int]Button)}
	f.w = wiring{pins: m, self: f}
	for pin := TrackJamPin; pin <= YAxisInvertPin; pin++ {
		if err := f.w.digital(event.DigitalChange, pin); err != nil {
			return nil, fmt.Errorf("flight control: %w", err)
		}
	}
	if err := f.w.analog(JoystickXPin, JoystickYPin); err != nil {
		return nil, fmt.Errorf("flight control joystick: %w", err)
	}
	return f, nil
}

// Button returns the state of the switch on pin.
func (f *FlightControl) Button(pin int) Button {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buttons[pin]
}

// Thruster returns the current thruster direction.
func (f *FlightControl) Thruster() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.direction()
}

// Joystick returns the current stick position.
func (f *FlightControl) Joystick() Joystick {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stick()
}

func (f *FlightControl) direction() int {
	left := f.buttons[ThrusterLeftPin] == Pressed
	right := f.buttons[ThrusterRightPin] == Pressed
	switch {
	case left && !right:
		return -1
	case right && !left:
		return 1
	}
	return 0
}

func (f *FlightControl) stick() Joystick {
	y := f.y
	if f.inverted {
		y = 1 - y
	}
	return Joystick{X: f.x, Y: y}
}

func (f *FlightControl) Notify(msg event.Message) {
	switch p := msg.Payload.(type) {
	case event.Digital:
		f.digital(p)
	case event.Analog:
		f.analog(p)
	}
}

func (f *FlightControl) digital(d event.Digital) {
	state := ButtonFor(d.Value)
	f.mu.Lock()
	f.buttons[d.Address] = state
	f.mu.Unlock()

	switch d.Address {
	case ThrusterLeftPin, ThrusterRightPin:
		f.mu.Lock()
		dir := f.direction()
		f.mu.Unlock()
		f.w.publish(RCSThrusterToggled, ThrusterLeftPin, Thruster{Direction: dir})

	case YAxisInvertPin:
		f.mu.Lock()
		f.inverted = state == Pressed
		j := f.stick()
		f.mu.Unlock()
		f.w.publish(YAxisInvertToggled, YAxisInvertPin, ButtonEvent{Pin: YAxisInvertPin, State: state})
		f.w.publish(JoystickMoved, JoystickXPin, j)

	default:
		if kind, ok := pressKinds[d.Address]; ok && state == Pressed {
			f.w.publish(kind, d.Address, ButtonEvent{Pin: d.Address, State: state})
		}
	}
}

func (f *FlightControl) analog(a event.Analog) {
	v := float64(a.Value) / 65535
	f.mu.Lock()
	switch a.Address {
	case JoystickXPin:
		f.x = v
	case JoystickYPin:
		f.y = v
	default:
		f.mu.Unlock()
		return
	}
	j := f.stick()
	f.mu.Unlock()
	f.w.publish(JoystickMoved, JoystickXPin, j)
}

// Close removes the panel's subscriptions.
func (f *FlightControl) Close() error { return f.w.close() }
