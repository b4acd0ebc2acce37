package encoder

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/fault"
	"github.com/sweeney/shuttle-console/internal/gpio"
	"github.com/sweeney/shuttle-console/internal/pins"
)

type positions struct {
	got []int
}

func (p *positions) Notify(msg event.Message) {
	p.got = append(p.got, msg.Payload.(event.Encoder).Position)
}

// newLocalRig wires an encoder to local bank lines 33-36.
func newLocalRig(t *testing.T) (*pins.Manager, map[int]*gpio.FakeLine, *Encoder) {
	t.Helper()
	bank, lines, _ := gpio.NewFakeBank(33, 34, 35, 36)
	logger := log.New(&bytes.Buffer{}, "", 0)
	m := pins.New(pins.Config{Local: bank, Logger: logger})
	e, err := New(m, 33, 34, 35, 36)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, lines, e
}

func setBits(lines map[int]*gpio.FakeLine, bits string) {
	for i, c := range bits {
		lines[33+i].Set(c == '1')
	}
}

func TestGraySequence(t *testing.T) {
	m, lines, e := newLocalRig(t)
	rec := &positions{}
	m.Bus().Subscribe(e.Key(), rec)

	setBits(lines, "0000")
	m.Sample()
	if err := e.Sync(); err != nil {
		t.Fatal(err)
	}
	if e.Position() != 15 {
		t.Fatalf("expected position 15 after sync, got %d", e.Position())
	}

	for _, bits := range []string{"0001", "0011", "0010"} {
		setBits(lines, bits)
		m.Sample()
	}

	want := []int{14, 12, 13}
	if len(rec.got) != len(want) {
		t.Fatalf("expected %d EncoderChange events, got %v", len(want), rec.got)
	}
	for i := range want {
		if rec.got[i] != want[i] {
			t.Errorf("step %d: got %d, want %d", i, rec.got[i], want[i])
		}
	}
}

func TestStartsAtZero(t *testing.T) {
	_, _, e := newLocalRig(t)
	if e.Position() != 0 {
		t.Errorf("expected initial position 0, got %d", e.Position())
	}
	if e.Key() != event.K(event.EncoderChange, 33) {
		t.Errorf("unexpected key %v", e.Key())
	}
}

func TestSingleLineChange(t *testing.T) {
	m, lines, e := newLocalRig(t)
	rec := &positions{}
	m.Bus().Subscribe(e.Key(), rec)

	m.Sample()
	lines[33].Set(false) // p1, most significant
	m.Sample()

	if len(rec.got) != 1 || rec.got[0] != 8 {
		t.Errorf("expected [8], got %v", rec.got)
	}
}

func TestMultiBitTransitionInOnePass(t *testing.T) {
	m, lines, e := newLocalRig(t)
	rec := &positions{}
	m.Bus().Subscribe(e.Key(), rec)

	m.Sample()
	// 0 -> 3 flips p3 and p4 in the same pass; p3 is sampled first, so the
	// intermediate code 2 is reported.
	lines[35].Set(false)
	lines[36].Set(false)
	m.Sample()

	want := []int{2, 3}
	if len(rec.got) != 2 || rec.got[0] != want[0] || rec.got[1] != want[1] {
		t.Errorf("got %v, want %v", rec.got, want)
	}
	if e.Position() != 3 {
		t.Errorf("expected final position 3, got %d", e.Position())
	}
}

func TestClose(t *testing.T) {
	m, lines, e := newLocalRig(t)
	rec := &positions{}
	m.Bus().Subscribe(e.Key(), rec)

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	m.Sample()
	lines[34].Set(false)
	m.Sample()
	if len(rec.got) != 0 {
		t.Errorf("closed encoder should not publish, got %v", rec.got)
	}
	if err := e.Close(); !errors.Is(err, fault.NotSubscribed) {
		t.Errorf("expected NotSubscribed on second Close, got %v", err)
	}
}

func TestNewRejectsBadAddress(t *testing.T) {
	bank, _, _ := gpio.NewFakeBank(33)
	m := pins.New(pins.Config{Local: bank, Logger: log.New(&bytes.Buffer{}, "", 0)})
	if _, err := New(m, 33, 34, 35, 99); !errors.Is(err, fault.OutOfRange) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
	// the partial subscriptions were rolled back
	if n := m.Bus().Count(event.K(event.DigitalChange, 33)); n != 0 {
		t.Errorf("expected rollback, %d listeners left on 33", n)
	}
}

func TestIgnoresForeignMessages(t *testing.T) {
	m, _, e := newLocalRig(t)
	rec := &positions{}
	m.Bus().Subscribe(e.Key(), rec)

	e.Notify(event.Message{Key: event.K(event.DigitalChange, 5), Payload: event.Digital{Address: 5}})
	e.Notify(event.Message{Key: event.K(event.DigitalChange, 33), Payload: "junk"})
	if len(rec.got) != 0 || e.Position() != 0 {
		t.Errorf("expected no change, got %v pos %d", rec.got, e.Position())
	}
}

func TestDelta(t *testing.T) {
	tests := []struct{ from, to, want int }{
		{0, 1, 1},
		{1, 0, -1},
		{15, 0, 1},
		{0, 15, -1},
		{3, 10, 7},
		{3, 11, -8},
		{5, 5, 0},
	}
	for _, tt := range tests {
		if got := Delta(tt.from, tt.to); got != tt.want {
			t.Errorf("Delta(%d, %d) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}
