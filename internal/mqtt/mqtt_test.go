package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
)

func TestTopics(t *testing.T) {
	if TopicEvents != "shuttle/console/events" {
		t.Errorf("unexpected events topic: %s", TopicEvents)
	}
	if TopicSystem != "shuttle/console/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
	ev := Event{Key: event.K(event.DigitalFalling, 40)}
	if got := ev.Topic(); got != "shuttle/console/events/DigitalFalling/40" {
		t.Errorf("Topic: got %s", got)
	}
}

func TestFormatPayload(t *testing.T) {
	ev := Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Key:       event.K(event.DigitalFalling, 40),
		Payload:   event.Digital{Address: 40, Value: false},
	}

	payload, err := FormatPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"event":{"timestamp":"2026-02-02T22:18:12Z","key":"DigitalFalling@40","kind":"DigitalFalling","address":40,"data":{"address":40,"value":false}}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ev := Event{
		Timestamp: time.Date(2026, 2, 2, 12, 0, 0, 500, loc),
		Key:       event.K(event.EncoderChange, 1),
		Payload:   event.Encoder{Position: 3},
	}
	payload, err := FormatPayload(ev)
	if err != nil {
		t.Fatal(err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Event.Timestamp != "2026-02-02T10:00:00.0000005Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Event.Timestamp)
	}
}

func TestFormatPayloadWithoutData(t *testing.T) {
	payload, err := FormatPayload(Event{Key: event.K("Heartbeat", 0)})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(payload), `"data"`) {
		t.Errorf("nil data should be omitted: %s", payload)
	}
}

func TestFormatPayloadUnencodable(t *testing.T) {
	_, err := FormatPayload(Event{Key: event.K("Bad", 1), Payload: func() {}})
	if err == nil {
		t.Error("expected an error for a func payload")
	}
}

func TestFormatSystemPayload(t *testing.T) {
	tests := []struct {
		name string
		ev   SystemEvent
		want string
	}{
		{
			name: "shutdown",
			ev:   SystemEvent{Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC), Event: "SHUTDOWN", Reason: "SIGTERM"},
			want: `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`,
		},
		{
			name: "reconnected omits reason",
			ev:   SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC), Event: "RECONNECTED"},
			want: `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`,
		},
		{
			name: "raw payload wins",
			ev:   SystemEvent{Event: "STARTUP", RawPayload: []byte(`{"status":{}}`)},
			want: `{"status":{}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatSystemPayload(tt.ev)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestWillPayload(t *testing.T) {
	var parsed SystemPayload
	if err := json.Unmarshal(WillPayload(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Event != "OFFLINE" || parsed.System.Reason != "LWT" {
		t.Errorf("unexpected will: %+v", parsed.System)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	ev := Event{Key: event.K(event.AnalogChange, 5), Payload: event.Analog{Address: 5, Value: 9}}
	if err := f.Publish(ev); err != nil {
		t.Fatal(err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatal(err)
	}
	if len(f.Events()) != 1 || len(f.Payloads()) != 1 {
		t.Errorf("expected one event recorded")
	}
	if sys := f.SystemEvents(); len(sys) != 1 || !sys[0].Retained {
		t.Errorf("unexpected system events %+v", sys)
	}

	f.PublishError = errors.New("broker down")
	if err := f.Publish(ev); err == nil {
		t.Error("expected injected error")
	}
	if len(f.Events()) != 1 {
		t.Error("failed publish should not be recorded")
	}

	f.Close()
	if !f.Closed {
		t.Error("expected Closed")
	}
	f.Reset()
	if len(f.Events()) != 0 || f.Closed || f.PublishError != nil {
		t.Error("Reset did not clear state")
	}
}

func runBridge(t *testing.T, b *Bridge) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("bridge did not stop")
		}
	}
}

func TestBridgeForwardsTappedMessages(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)
	bus := event.NewBus(logger)
	pub := NewFakePublisher()
	b := NewBridge(pub, 16, logger, event.AnalogChange)
	if err := bus.Tap(b); err != nil {
		t.Fatal(err)
	}

	bus.Publish(event.K(event.DigitalFalling, 40), event.Digital{Address: 40})
	bus.Publish(event.K(event.AnalogChange, 5), event.Analog{Address: 5, Value: 1})
	bus.Publish(event.K(event.DigitalRising, 40), event.Digital{Address: 40, Value: true})

	stop := runBridge(t, b)
	stop()

	got := pub.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(got))
	}
	if got[0].Key != event.K(event.DigitalFalling, 40) || got[1].Key != event.K(event.DigitalRising, 40) {
		t.Errorf("unexpected order: %v, %v", got[0].Key, got[1].Key)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
	if b.Sent() != 2 || b.Dropped() != 0 {
		t.Errorf("sent=%d dropped=%d", b.Sent(), b.Dropped())
	}
}

func TestBridgeDropsWhenFull(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	pub := NewFakePublisher()
	b := NewBridge(pub, 2, logger)

	for i := 0; i < 5; i++ {
		b.Notify(event.Message{Key: event.K(event.DigitalChange, i+1)})
	}
	if b.Dropped() != 3 {
		t.Errorf("expected 3 dropped, got %d", b.Dropped())
	}
	if n := strings.Count(buf.String(), "queue full"); n != 1 {
		t.Errorf("expected one queue-full log line, got %d", n)
	}

	stop := runBridge(t, b)
	stop()
	if len(pub.Events()) != 2 {
		t.Errorf("expected the 2 queued events, got %d", len(pub.Events()))
	}
}

func TestBridgeCountsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	pub := NewFakePublisher()
	pub.PublishError = errors.New("timeout")
	b := NewBridge(pub, 4, logger)

	b.Notify(event.Message{Key: event.K(event.DigitalChange, 1)})
	stop := runBridge(t, b)
	stop()

	if b.Failed() != 1 || b.Sent() != 0 {
		t.Errorf("failed=%d sent=%d", b.Failed(), b.Sent())
	}
	if !strings.Contains(buf.String(), "mqtt: publish DigitalChange@1: timeout") {
		t.Errorf("unexpected log: %s", buf.String())
	}
}

func TestBridgeNeverBlocksPublisher(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)
	bus := event.NewBus(logger)
	pub := NewFakePublisher()
	pub.Block = make(chan struct{})
	b := NewBridge(pub, 1, logger)
	bus.Tap(b)
	stop := runBridge(t, b)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(event.K(event.DigitalChange, 1), nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bus publish blocked on a stalled broker")
	}

	close(pub.Block)
	stop()
	if b.Dropped() == 0 {
		t.Error("expected drops with a stalled publisher")
	}
}
