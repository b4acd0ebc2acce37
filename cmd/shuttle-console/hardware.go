package main

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/sweeney/shuttle-console/internal/adcmux"
	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/gpio"
	"github.com/sweeney/shuttle-console/internal/i2cdev"
	"github.com/sweeney/shuttle-console/internal/mcp23017"
	"github.com/sweeney/shuttle-console/internal/pins"
	"github.com/sweeney/shuttle-console/internal/sim"
)

// hardware is an opened console backend.
type hardware struct {
	pins  *pins.Manager
	board *sim.Board // set in simulation mode
	close func() error
}

func openHardware(o options, bus *event.Bus) (*hardware, error) {
	if o.sim {
		b := sim.NewBoard()
		m, err := b.Manager(bus, nil)
		if err != nil {
			return nil, fmt.Errorf("sim board: %w", err)
		}
		return &hardware{pins: m, board: b, close: func() error { return nil }}, nil
	}
	return openReal(o, bus)
}

// openReal opens the I2C adapter, the GPIO chip and the IIO ADC. An expander
// that fails to configure stays wired: the sampler logs its reads as failing
// and picks it up again if it starts answering.
func openReal(o options, bus *event.Bus) (*hardware, error) {
	addrs, err := parseExpanders(o.expanders)
	if err != nil {
		return nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	i2c, err := i2cdev.Open(o.i2c)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	closers = append(closers, i2c.Close)

	var chips [3]pins.Expander
	for i, a := range addrs {
		d := mcp23017.New(i2c, a)
		if err := d.Configure(); err != nil {
			log.Printf("expander 0x%02x: configure failed: %v", a, err)
		}
		chips[i] = d
	}

	chip, err := gpio.OpenChip(o.gpiochip)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	closers = append(closers, chip.Close)

	local, err := chip.OpenLines(gpio.DefaultLocalOffsets)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("local lines: %w", err)
	}

	var sel [4]gpio.Line
	for i, off := range gpio.DefaultMuxSelect {
		l, err := chip.Line(off)
		if err != nil {
			for _, l := range local {
				l.Close()
			}
			closeAll()
			return nil, fmt.Errorf("mux select %d: %w", i, err)
		}
		sel[i] = l
		closers = append(closers, l.Close)
	}

	analog := map[int]gpio.AnalogLine{}
	var mux pins.Mux
	if o.iio != "" {
		analog[gpio.ADCLocalChannel1] = gpio.NewIIOChannel(o.iio, gpio.ADCLocalChannel1, o.iioBits)
		analog[gpio.ADCLocalChannel2] = gpio.NewIIOChannel(o.iio, gpio.ADCLocalChannel2, o.iioBits)
		mx, err := adcmux.New(sel, gpio.NewIIOChannel(o.iio, gpio.ADCMuxChannel, o.iioBits))
		if err != nil {
			for _, l := range local {
				l.Close()
			}
			closeAll()
			return nil, fmt.Errorf("analog mux: %w", err)
		}
		mux = mx
	} else {
		log.Printf("no -iio device: analog inputs disabled")
	}

	bank := gpio.NewBank(local, analog)
	closers = append(closers, bank.Close)

	m := pins.New(pins.Config{
		Bus:       bus,
		Expanders: chips,
		Local:     bank,
		Mux:       mux,
	})
	return &hardware{pins: m, close: closeAll}, nil
}

// parseExpanders parses three distinct comma-separated MCP23017 addresses,
// e.g. "0x20,0x21,0x22".
func parseExpanders(s string) ([3]uint16, error) {
	var out [3]uint16
	parts := strings.Split(s, ",")
	if len(parts) != len(out) {
		return out, fmt.Errorf("-expanders: want 3 addresses, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 7)
		if err != nil {
			return out, fmt.Errorf("-expanders: bad address %q", p)
		}
		if v < mcp23017.MinAddress || v > mcp23017.MaxAddress {
			return out, fmt.Errorf("-expanders: address 0x%02x outside 0x%02x-0x%02x", v, mcp23017.MinAddress, mcp23017.MaxAddress)
		}
		for j := 0; j < i; j++ {
			if out[j] == uint16(v) {
				return out, fmt.Errorf("-expanders: address 0x%02x given twice", v)
			}
		}
		out[i] = uint16(v)
	}
	return out, nil
}
