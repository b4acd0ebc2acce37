package panels

import (
	"fmt"
	"sync"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Launch panel events. Difficulty is keyed by the first difficulty switch.
const (
	LaunchKeyToggled        event.Kind = "LaunchKeyToggled"
	LaunchEStopToggled      event.Kind = "LaunchEStopToggled"
	LaunchStartPressed      event.Kind = "LaunchStartPressed"
	LaunchDifficultyChanged event.Kind = "LaunchDifficultyChanged"
)

// Launch panel pins.
const (
	LaunchStartPin = 38
	LaunchEStopPin = 39
	LaunchKeyPin   = 40
)

// DifficultyPins are the six difficulty switches.
var DifficultyPins = [6]int{41, 42, 43, 44, 45, 46}

// Difficulty is the payload of LaunchDifficultyChanged.
type Difficulty struct {
	Level int `json:"level"` // number of engaged switches, 0-6
}

// Launch is the launch panel: key switch, emergency stop, start button and
// the difficulty bank.
type Launch struct {
	w wiring

	mu         sync.Mutex
	key        Button
	estop      Button
	start      Button
	difficulty [6]bool
	level      int
}

// NewLaunch wires the launch panel.
func NewLaunch(m *pins.Manager) (*Launch, error) {
	l := &Launch{}
	l.w = wiring{pins: m, self: l}
	if err := l.w.digital(event.DigitalChange, LaunchKeyPin, LaunchEStopPin, LaunchStartPin); err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	if err := l.w.digital(event.DigitalChange, DifficultyPins[:]...); err != nil {
		return nil, fmt.Errorf("launch difficulty: %w", err)
	}
	return l, nil
}

// Sync reads the difficulty switches directly, so switches engaged before
// the first sampling pass count. It does not publish.
func (l *Launch) Sync() error {
	var engaged [6]bool
	for i, p := range DifficultyPins {
		v, err := l.w.pins.DigitalRead(p)
		if err != nil {
			return fmt.Errorf("launch sync pin %d: %w", p, err)
		}
		engaged[i] = ButtonFor(v) == Pressed
	}
	l.mu.Lock()
	l.difficulty = engaged
	l.level = count(engaged)
	l.mu.Unlock()
	return nil
}

// Difficulty returns the current difficulty level.
func (l *Launch) Difficulty() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Armed reports whether the key is turned and the emergency stop released.
func (l *Launch) Armed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.key == Pressed && l.estop == Released
}

func (l *Launch) Notify(msg event.Message) {
	d, ok := msg.Payload.(event.Digital)
	if !ok || msg.Key.Kind != event.DigitalChange {
		return
	}
	state := ButtonFor(d.Value)
	switch pin := msg.Key.Address; pin {
	case LaunchKeyPin:
		l.mu.Lock()
		l.key = state
		l.mu.Unlock()
		l.w.publish(LaunchKeyToggled, pin, ButtonEvent{Pin: pin, State: state})

	case LaunchEStopPin:
		l.mu.Lock()
		l.estop = state
		l.mu.Unlock()
		l.w.publish(LaunchEStopToggled, pin, ButtonEvent{Pin: pin, State: state})

	case LaunchStartPin:
		l.mu.Lock()
		l.start = state
		l.mu.Unlock()
		if state == Pressed {
			l.w.publish(LaunchStartPressed, pin, ButtonEvent{Pin: pin, State: state})
		}

	default:
		i := pin - DifficultyPins[0]
		if i < 0 || i >= len(DifficultyPins) {
			return
		}
		l.mu.Lock()
		l.difficulty[i] = state == Pressed
		level := count(l.difficulty)
		changed := level != l.level
		l.level = level
		l.mu.Unlock()
		if changed {
			l.w.publish(LaunchDifficultyChanged, DifficultyPins[0], Difficulty{Level: level})
		}
	}
}

// Close removes the panel's subscriptions.
func (l *Launch) Close() error { return l.w.close() }

func count(bits [6]bool) int {
	n := 0
	for _, b := range bits {
		if b {
			n++
		}
	}
	return n
}
