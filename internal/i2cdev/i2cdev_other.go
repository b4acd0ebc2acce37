//go:build !linux

// Package i2cdev exposes a Linux /dev/i2c-N adapter as a tinygo drivers.I2C
// bus. Other platforms only get the stub.
package i2cdev

import "errors"

var errUnsupported = errors.New("i2cdev: not supported on this platform (requires Linux)")

// Bus is not available on non-Linux platforms.
type Bus struct{}

// Open returns an error on non-Linux platforms.
func Open(path string) (*Bus, error) {
	return nil, errUnsupported
}

// Tx is not implemented on non-Linux platforms.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (b *Bus) Close() error {
	return nil
}
