package panels

import (
	"errors"

	"github.com/sweeney/shuttle-console/internal/pins"
)

// Console holds every panel wired to one pin manager.
type Console struct {
	Engine        *Engine
	Launch        *Launch
	FlightControl *FlightControl
	ECS           *ECS
	Left          *Stabilizer
	Right         *Stabilizer
}

// NewConsole builds all panels. On failure the panels already built are
// closed again.
func NewConsole(m *pins.Manager) (*Console, error) {
	c := &Console{}
	var err error
	if c.Engine, err = NewEngine(m); err != nil {
		return nil, err
	}
	if c.Launch, err = NewLaunch(m); err != nil {
		c.Close()
		return nil, err
	}
	if c.FlightControl, err = NewFlightControl(m); err != nil {
		c.Close()
		return nil, err
	}
	if c.ECS, err = NewECS(m); err != nil {
		c.Close()
		return nil, err
	}
	if c.Left, err = NewStabilizer(m, LeftStabilizerPins); err != nil {
		c.Close()
		return nil, err
	}
	if c.Right, err = NewStabilizer(m, RightStabilizerPins); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Sync seeds the panels that need the current hardware state.
func (c *Console) Sync() error {
	return errors.Join(c.Launch.Sync(), c.Left.Sync(), c.Right.Sync())
}

// Close removes every panel's subscriptions.
func (c *Console) Close() error {
	var errs []error
	if c.Engine != nil {
		errs = append(errs, c.Engine.Close())
	}
	if c.Launch != nil {
		errs = append(errs, c.Launch.Close())
	}
	if c.FlightControl != nil {
		errs = append(errs, c.FlightControl.Close())
	}
	if c.ECS != nil {
		errs = append(errs, c.ECS.Close())
	}
	if c.Left != nil {
		errs = append(errs, c.Left.Close())
	}
	if c.Right != nil {
		errs = append(errs, c.Right.Close())
	}
	return errors.Join(errs...)
}
