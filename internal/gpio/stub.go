//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// Chip is not available on non-Linux platforms.
type Chip struct{}

// OpenChip returns an error on non-Linux platforms.
func OpenChip(name string) (*Chip, error) {
	return nil, errUnsupported
}

// OpenLines is not implemented on non-Linux platforms.
func (c *Chip) OpenLines(offsets map[int]int) (map[int]Line, error) {
	return nil, errUnsupported
}

// Line is not implemented on non-Linux platforms.
func (c *Chip) Line(offset int) (Line, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (c *Chip) Close() error {
	return nil
}
