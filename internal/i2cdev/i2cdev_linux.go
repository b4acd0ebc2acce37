//go:build linux

// Package i2cdev exposes a Linux /dev/i2c-N adapter as a tinygo drivers.I2C
// bus, so register drivers written against that interface run on the host.
package i2cdev

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"tinygo.org/x/drivers"
)

// I2C_SLAVE from <linux/i2c-dev.h>.
const ioctlI2CSlave = 0x0703

var _ drivers.I2C = (*Bus)(nil)

// Bus is an open I2C adapter. Transactions are serialised.
type Bus struct {
	path string

	mu   sync.Mutex
	fd   int
	addr int // target currently selected with I2C_SLAVE, -1 if none
}

// Open opens an adapter such as /dev/i2c-1.
func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Bus{path: path, fd: fd, addr: -1}, nil
}

// Tx writes w to the device at addr and then reads len(r) bytes. Either may
// be empty.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd < 0 {
		return fmt.Errorf("%s: closed", b.path)
	}
	if int(addr) != b.addr {
		if err := unix.IoctlSetInt(b.fd, ioctlI2CSlave, int(addr)); err != nil {
			return fmt.Errorf("%s: select 0x%02x: %w", b.path, addr, err)
		}
		b.addr = int(addr)
	}
	if len(w) > 0 {
		n, err := unix.Write(b.fd, w)
		if err != nil {
			return fmt.Errorf("%s: write 0x%02x: %w", b.path, addr, err)
		}
		if n != len(w) {
			return fmt.Errorf("%s: write 0x%02x: short write %d/%d", b.path, addr, n, len(w))
		}
	}
	if len(r) > 0 {
		n, err := unix.Read(b.fd, r)
		if err != nil {
			return fmt.Errorf("%s: read 0x%02x: %w", b.path, addr, err)
		}
		if n != len(r) {
			return fmt.Errorf("%s: read 0x%02x: short read %d/%d", b.path, addr, n, len(r))
		}
	}
	return nil
}

// Close releases the adapter.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return nil
	}
	err := unix.Close(b.fd)
	b.fd = -1
	return err
}
