package monitor

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
	"github.com/sweeney/shuttle-console/internal/sim"
	"github.com/sweeney/shuttle-console/internal/status"
)

func newRig(t *testing.T, opts Options) (*sim.Board, *pins.Manager, *status.Tracker, *Monitor, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	b := sim.NewBoard()
	m, err := b.Manager(event.NewBus(logger), logger)
	if err != nil {
		t.Fatal(err)
	}
	tr := status.NewTracker(time.Now(), status.Config{})
	mon, err := New(m, tr, logger, opts)
	if err != nil {
		t.Fatal(err)
	}
	m.Sample()
	mon.Seed()
	return b, m, tr, mon, &buf
}

func TestSeedMarksReady(t *testing.T) {
	_, _, tr, _, _ := newRig(t, Options{})
	snap := tr.Snapshot()
	if !snap.Ready {
		t.Error("expected ready after seed")
	}
	if len(snap.Digital) != pins.MaxDigital {
		t.Errorf("expected %d digital levels, got %d", pins.MaxDigital, len(snap.Digital))
	}
	if len(snap.Analog) != len(pins.AnalogAddresses) {
		t.Errorf("expected %d analog levels, got %d", len(pins.AnalogAddresses), len(snap.Analog))
	}
	if len(snap.Counts) != 0 {
		t.Errorf("seeding pass should publish nothing, got %v", snap.Counts)
	}
}

func TestDigitalTransitionLogged(t *testing.T) {
	b, m, tr, _, buf := newRig(t, Options{})
	b.Press(40)
	m.Sample()

	if !strings.Contains(buf.String(), "monitor: digital 40 -> 0") {
		t.Errorf("expected transition in log, got:\n%s", buf.String())
	}
	snap := tr.Snapshot()
	if v, ok := snap.Digital[40]; !ok || v {
		t.Errorf("tracker digital 40: got %v", v)
	}
	if snap.Counts[event.DigitalFalling] != 1 || snap.Counts[event.DigitalChange] != 1 {
		t.Errorf("counts: got %v", snap.Counts)
	}
}

func TestAnalogLoggingIsOptional(t *testing.T) {
	b, m, tr, _, buf := newRig(t, Options{})
	b.SetAnalog(5, 1234)
	m.Sample()

	if strings.Contains(buf.String(), "analog 5") {
		t.Errorf("analog should not be logged by default:\n%s", buf.String())
	}
	if tr.Snapshot().Analog[5] != 1234 {
		t.Errorf("tracker analog 5: got %d", tr.Snapshot().Analog[5])
	}

	b, m, _, _, buf = newRig(t, Options{LogAnalog: true})
	b.SetAnalog(47, 99)
	m.Sample()
	if !strings.Contains(buf.String(), "monitor: analog 47 -> 99") {
		t.Errorf("expected analog line, got:\n%s", buf.String())
	}
}

func TestEncoderAndPanelEvents(t *testing.T) {
	_, m, tr, _, buf := newRig(t, Options{LogPanels: true})
	m.Bus().Publish(event.K(event.EncoderChange, 17), event.Encoder{Position: 6})
	m.Bus().Publish(event.K("LaunchStartPressed", 38), struct{ Pin int }{38})

	snap := tr.Snapshot()
	if snap.Encoders[17] != 6 {
		t.Errorf("encoder 17: got %d", snap.Encoders[17])
	}
	if snap.Counts["LaunchStartPressed"] != 1 {
		t.Errorf("counts: got %v", snap.Counts)
	}
	if !strings.Contains(buf.String(), "monitor: LaunchStartPressed@38") {
		t.Errorf("expected panel event in log, got:\n%s", buf.String())
	}
}

func TestClose(t *testing.T) {
	b, m, tr, mon, _ := newRig(t, Options{})
	if err := mon.Close(); err != nil {
		t.Fatal(err)
	}
	if n := m.Bus().Count(event.K(event.DigitalChange, 1)); n != 0 {
		t.Errorf("expected no subscriptions, got %d", n)
	}
	b.Press(1)
	m.Sample()
	if len(tr.Snapshot().Counts) != 0 {
		t.Error("closed monitor still counting")
	}
	if err := mon.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
