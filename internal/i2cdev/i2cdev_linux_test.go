//go:build linux

package i2cdev

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenMissingAdapter(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "i2c-9"))
	if err == nil {
		t.Fatal("expected error opening a missing adapter")
	}
}

func TestTxOnNonAdapterFails(t *testing.T) {
	// A regular file opens fine but rejects the I2C_SLAVE ioctl.
	path := filepath.Join(t.TempDir(), "i2c-0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer b.Close()

	if err := b.Tx(0x20, []byte{0x12}, make([]byte, 1)); err == nil {
		t.Error("expected ioctl failure on a regular file")
	}
}

func TestCloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "i2c-0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	b, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := b.Tx(0x20, []byte{0}, nil); err == nil {
		t.Error("expected error after Close")
	}
}
