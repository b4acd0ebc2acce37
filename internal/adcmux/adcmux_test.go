package adcmux

import (
	"errors"
	"testing"

	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/gpio"
)

func newTestMux(t *testing.T) (*Mux, [4]*gpio.FakeLine, *gpio.FakeAnalog) {
	t.Helper()
	var fakes [4]*gpio.FakeLine
	var sel [4]gpio.Line
	for i := range fakes {
		fakes[i] = gpio.NewFakeLine(true)
		sel[i] = fakes[i]
	}
	ain := &gpio.FakeAnalog{}
	m, err := New(sel, ain)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, fakes, ain
}

func selected(fakes [4]*gpio.FakeLine) int {
	ch := 0
	for i, f := range fakes {
		if f.Output() {
			ch |= 1 << uint(i)
		}
	}
	return ch
}

func TestNewDrivesSelectLinesLow(t *testing.T) {
	_, fakes, _ := newTestMux(t)
	for i, f := range fakes {
		if f.Mode != gpio.Output {
			t.Errorf("select line %d: mode %s, want output", i, f.Mode)
		}
		if f.Output() {
			t.Errorf("select line %d: expected low", i)
		}
	}
}

func TestSelectTruthTable(t *testing.T) {
	m, fakes, ain := newTestMux(t)
	ain.OnRead = func() uint16 { return uint16(selected(fakes)) * 100 }

	for ch := 0; ch < Channels; ch++ {
		v, err := m.Read(ch)
		if err != nil {
			t.Fatalf("channel %d: %v", ch, err)
		}
		if v != uint16(ch)*100 {
			t.Errorf("channel %d: read %d, want %d", ch, v, ch*100)
		}
		for i, f := range fakes {
			want := ch&(1<<uint(i)) != 0
			if f.Output() != want {
				t.Errorf("channel %d: select line %d = %v, want %v", ch, i, f.Output(), want)
			}
		}
	}
}

func TestEveryReadReselects(t *testing.T) {
	m, fakes, _ := newTestMux(t)
	before := fakes[0].Writes
	m.Read(3)
	m.Read(3)
	if got := fakes[0].Writes - before; got != 2 {
		t.Errorf("expected select line to be driven on each read, got %d writes", got)
	}
}

func TestOutOfRange(t *testing.T) {
	m, fakes, ain := newTestMux(t)
	ain.Set(999)
	before := fakes[0].Writes

	for _, ch := range []int{-1, 16, 100} {
		v, err := m.Read(ch)
		if !errors.Is(err, fault.OutOfRange) {
			t.Errorf("Read(%d): expected OutOfRange, got %v", ch, err)
		}
		if v != 0 {
			t.Errorf("Read(%d): expected 0, got %d", ch, v)
		}
		if err := m.Write(ch, 1); !errors.Is(err, fault.OutOfRange) {
			t.Errorf("Write(%d): expected OutOfRange, got %v", ch, err)
		}
	}
	if fakes[0].Writes != before || ain.Reads != 0 {
		t.Error("out-of-range access should not touch the hardware")
	}
}

func TestWrite(t *testing.T) {
	m, fakes, ain := newTestMux(t)
	if err := m.Write(9, 512); err != nil {
		t.Fatal(err)
	}
	if selected(fakes) != 9 {
		t.Errorf("expected channel 9 selected, got %d", selected(fakes))
	}
	if ain.Value != 512 {
		t.Errorf("expected 512 written, got %d", ain.Value)
	}
}

func TestReadFailureIsBusFailure(t *testing.T) {
	m, _, ain := newTestMux(t)
	ain.ReadError = errors.New("EIO")
	if _, err := m.Read(0); !errors.Is(err, fault.BusFailure) {
		t.Errorf("expected BusFailure, got %v", err)
	}
}

func TestSelectFailureIsBusFailure(t *testing.T) {
	m, fakes, ain := newTestMux(t)
	fakes[2].WriteError = errors.New("EBUSY")
	if _, err := m.Read(4); !errors.Is(err, fault.BusFailure) {
		t.Errorf("expected BusFailure, got %v", err)
	}
	if ain.Reads != 0 {
		t.Error("should not sample after a failed select")
	}
}
