//go:build linux

package gpio

import (
	"fmt"
	"strconv"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/shuttle-console/internal/fault"
)

// Chip owns a GPIO character device and hands out lines from it.
type Chip struct {
	chip *gpiocdev.Chip
}

// OpenChip opens a chip such as "gpiochip0".
func OpenChip(name string) (*Chip, error) {
	c, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer("shuttle-console"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}
	return &Chip{chip: c}, nil
}

// Line requests offset as an input with pull-up, the resting state of every
// console switch.
func (c *Chip) Line(offset int) (*RealLine, error) {
	l, err := c.chip.RequestLine(offset, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		return nil, fmt.Errorf("request line %d: %w", offset, err)
	}
	return &RealLine{offset: offset, line: l, mode: InputPullUp}, nil
}

// Close releases the chip. Lines must be closed separately.
func (c *Chip) Close() error {
	return c.chip.Close()
}

// RealLine is a gpiocdev-backed Line.
type RealLine struct {
	offset int
	line   *gpiocdev.Line
	mode   Mode
}

func (r *RealLine) Configure(mode Mode) error {
	var err error
	switch mode {
	case Output:
		err = r.line.Reconfigure(gpiocdev.AsOutput(0))
	case InputPullUp:
		err = r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp)
	default:
		err = r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled)
	}
	if err != nil {
		return fmt.Errorf("configure line %d as %s: %w", r.offset, mode, err)
	}
	r.mode = mode
	return nil
}

func (r *RealLine) Value() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", r.offset, err)
	}
	return v != 0, nil
}

// SetValue drives an output line. Inputs report fault.Unsupported.
func (r *RealLine) SetValue(high bool) error {
	if r.mode != Output {
		return notOutput(r.offset)
	}
	v := 0
	if high {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("write line %d: %w", r.offset, err)
	}
	return nil
}

// Close returns the line to input with pull-up before releasing it, so no
// output is left driving a panel wire after shutdown.
func (r *RealLine) Close() error {
	var errs []error
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line %d: %w", r.offset, err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line %d: %w", r.offset, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// OpenLines requests one line per entry in offsets (keyed by console
// address). On failure every line already requested is released.
func (c *Chip) OpenLines(offsets map[int]int) (map[int]Line, error) {
	lines := make(map[int]Line, len(offsets))
	for addr, off := range offsets {
		l, err := c.Line(off)
		if err != nil {
			for _, opened := range lines {
				opened.Close()
			}
			return nil, fmt.Errorf("pin %d: %w", addr, err)
		}
		lines[addr] = l
	}
	return lines, nil
}

func notOutput(offset int) error {
	return fault.New(fault.Unsupported, "gpio.setValue", "line "+strconv.Itoa(offset)+" is not an output")
}
