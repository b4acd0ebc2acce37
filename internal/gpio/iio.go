package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/shuttle-console/internal/fault"
)

// IIOChannel reads one voltage channel of a Linux IIO ADC through sysfs,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw. Raw readings are
// scaled from the converter's bit depth to the full 16-bit range.
type IIOChannel struct {
	path string
	bits uint
}

// NewIIOChannel returns channel ch of the IIO device directory dir.
// bits is the converter resolution (12 for an MCP3208, 10 for an MCP3008).
func NewIIOChannel(dir string, ch int, bits uint) *IIOChannel {
	if bits == 0 || bits > 16 {
		bits = 16
	}
	return &IIOChannel{
		path: filepath.Join(dir, "in_voltage"+strconv.Itoa(ch)+"_raw"),
		bits: bits,
	}
}

func (c *IIOChannel) Read() (uint16, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", c.path, err)
	}
	raw, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return scale(raw, c.bits), nil
}

// Write is rejected: the console's converters are input only.
func (c *IIOChannel) Write(uint16) error {
	return fault.New(fault.Unsupported, "gpio.analogWrite", c.path)
}

func scale(raw uint64, bits uint) uint16 {
	max := uint64(1)<<bits - 1
	if raw > max {
		raw = max
	}
	if bits == 16 {
		return uint16(raw)
	}
	return uint16(raw * 0xFFFF / max)
}
