package event

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/sweeney/shuttle-console/internal/fault"
)

// recorder collects every message it is notified with.
type recorder struct {
	got []Message
}

func (r *recorder) Notify(msg Message) { r.got = append(r.got, msg) }

func newTestBus(t *testing.T) (*Bus, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewBus(log.New(&buf, "", 0)), &buf
}

func TestKeyString(t *testing.T) {
	if got := K(DigitalRising, 12).String(); got != "DigitalRising@12" {
		t.Errorf("got %q, want DigitalRising@12", got)
	}
}

func TestKeysCompareByValue(t *testing.T) {
	a := K(DigitalChange, 40)
	b := Key{Kind: "DigitalChange", Address: 40}
	if a != b {
		t.Error("independently built keys should be equal")
	}
	if a == K(DigitalChange, 41) {
		t.Error("different addresses should not be equal")
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	b, _ := newTestBus(t)
	r1, r2 := &recorder{}, &recorder{}
	key := K(DigitalChange, 3)

	if err := b.Subscribe(key, r1); err != nil {
		t.Fatalf("subscribe r1: %v", err)
	}
	if err := b.Subscribe(key, r2); err != nil {
		t.Fatalf("subscribe r2: %v", err)
	}

	n := b.Publish(key, Digital{Address: 3, Value: true})
	if n != 2 {
		t.Fatalf("expected 2 recipients, got %d", n)
	}
	for i, r := range []*recorder{r1, r2} {
		if len(r.got) != 1 {
			t.Fatalf("recorder %d: expected 1 message, got %d", i, len(r.got))
		}
		p := r.got[0].Payload.(Digital)
		if p.Address != 3 || !p.Value {
			t.Errorf("recorder %d: unexpected payload %+v", i, p)
		}
		if r.got[0].Key != key {
			t.Errorf("recorder %d: unexpected key %v", i, r.got[0].Key)
		}
	}
}

func TestPublishOnlyMatchingKey(t *testing.T) {
	b, _ := newTestBus(t)
	r := &recorder{}
	b.Subscribe(K(DigitalRising, 40), r)

	if n := b.Publish(K(DigitalFalling, 40), nil); n != 0 {
		t.Errorf("expected 0 recipients, got %d", n)
	}
	if n := b.Publish(K(DigitalRising, 41), nil); n != 0 {
		t.Errorf("expected 0 recipients, got %d", n)
	}
	if len(r.got) != 0 {
		t.Errorf("expected no messages, got %d", len(r.got))
	}
}

func TestSubscriptionOrder(t *testing.T) {
	b, _ := newTestBus(t)
	var order []int
	key := K(AnalogChange, 5)
	for i := 0; i < 4; i++ {
		i := i
		b.Subscribe(key, Func(func(Message) { order = append(order, i) }))
	}
	b.Publish(key, Analog{Address: 5, Value: 4095})

	for i, v := range order {
		if v != i {
			t.Fatalf("expected subscription order, got %v", order)
		}
	}
	if len(order) != 4 {
		t.Fatalf("expected 4 invocations, got %d", len(order))
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	b, logs := newTestBus(t)
	r := &recorder{}
	key := K(DigitalFalling, 7)

	if err := b.Subscribe(key, r); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	err := b.Subscribe(key, r)
	if !errors.Is(err, fault.AlreadySubscribed) {
		t.Fatalf("expected AlreadySubscribed, got %v", err)
	}
	if got := b.Count(key); got != 1 {
		t.Errorf("expected count 1 after duplicate subscribe, got %d", got)
	}
	if !strings.Contains(logs.String(), "already_subscribed") {
		t.Errorf("expected duplicate to be logged, got %q", logs.String())
	}

	b.Publish(key, nil)
	if len(r.got) != 1 {
		t.Errorf("expected single delivery, got %d", len(r.got))
	}
}

func TestSameListenerDifferentKeys(t *testing.T) {
	b, _ := newTestBus(t)
	r := &recorder{}
	if err := b.Subscribe(K(DigitalChange, 1), r); err != nil {
		t.Fatal(err)
	}
	if err := b.Subscribe(K(DigitalChange, 2), r); err != nil {
		t.Fatalf("same listener on another key should be accepted: %v", err)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	b, _ := newTestBus(t)
	r := &recorder{}
	key := K(DigitalChange, 9)

	b.Subscribe(key, r)
	if err := b.Unsubscribe(key, r); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if n := b.Publish(key, nil); n != 0 {
		t.Errorf("expected 0 recipients, got %d", n)
	}
	if len(r.got) != 0 {
		t.Errorf("expected no deliveries after unsubscribe, got %d", len(r.got))
	}
}

func TestUnsubscribeNotFound(t *testing.T) {
	b, _ := newTestBus(t)
	err := b.Unsubscribe(K(DigitalChange, 9), &recorder{})
	if !errors.Is(err, fault.NotSubscribed) {
		t.Fatalf("expected NotSubscribed, got %v", err)
	}
}

func TestUnsubscribeRemovesOnlyThatEntry(t *testing.T) {
	b, _ := newTestBus(t)
	r1, r2, r3 := &recorder{}, &recorder{}, &recorder{}
	key := K(DigitalChange, 9)
	b.Subscribe(key, r1)
	b.Subscribe(key, r2)
	b.Subscribe(key, r3)

	b.Unsubscribe(key, r2)
	b.Publish(key, nil)

	if len(r1.got) != 1 || len(r2.got) != 0 || len(r3.got) != 1 {
		t.Errorf("unexpected deliveries: r1=%d r2=%d r3=%d", len(r1.got), len(r2.got), len(r3.got))
	}
}

func TestSnapshotExcludesListenersAddedDuringDispatch(t *testing.T) {
	b, _ := newTestBus(t)
	key := K(DigitalChange, 4)
	late := &recorder{}

	first := Func(func(Message) {
		b.Subscribe(key, late)
	})
	b.Subscribe(key, first)

	if n := b.Publish(key, nil); n != 1 {
		t.Fatalf("expected 1 recipient, got %d", n)
	}
	if len(late.got) != 0 {
		t.Errorf("listener added mid-dispatch should not receive it, got %d", len(late.got))
	}

	if n := b.Publish(key, nil); n != 2 {
		t.Fatalf("expected 2 recipients on next publish, got %d", n)
	}
	if len(late.got) != 1 {
		t.Errorf("expected late listener on next publish, got %d", len(late.got))
	}
}

func TestSnapshotKeepsListenersRemovedDuringDispatch(t *testing.T) {
	b, _ := newTestBus(t)
	key := K(DigitalChange, 4)
	second := &recorder{}

	first := Func(func(Message) {
		b.Unsubscribe(key, second)
	})
	b.Subscribe(key, first)
	b.Subscribe(key, second)

	if n := b.Publish(key, nil); n != 2 {
		t.Fatalf("expected 2 recipients, got %d", n)
	}
	if len(second.got) != 1 {
		t.Errorf("listener removed mid-dispatch should still get the current message, got %d", len(second.got))
	}
	if got := b.Count(key); got != 1 {
		t.Errorf("expected 1 listener left, got %d", got)
	}
}

func TestPanickingListenerIsIsolated(t *testing.T) {
	b, logs := newTestBus(t)
	key := K(DigitalFalling, 40)
	after := &recorder{}

	b.Subscribe(key, Func(func(Message) { panic("bad panel") }))
	b.Subscribe(key, after)

	if n := b.Publish(key, Digital{Address: 40}); n != 2 {
		t.Errorf("expected 2 invoked, got %d", n)
	}
	if len(after.got) != 1 {
		t.Errorf("listener after the faulty one should still run, got %d", len(after.got))
	}
	if got := b.Stats().ListenerFaults; got != 1 {
		t.Errorf("expected 1 listener fault, got %d", got)
	}
	if !strings.Contains(logs.String(), "listener_fault") || !strings.Contains(logs.String(), "bad panel") {
		t.Errorf("expected fault to be logged, got %q", logs.String())
	}
}

func TestTapSeesEveryMessage(t *testing.T) {
	b, _ := newTestBus(t)
	tap := &recorder{}
	if err := b.Tap(tap); err != nil {
		t.Fatal(err)
	}
	if err := b.Tap(tap); !errors.Is(err, fault.AlreadySubscribed) {
		t.Errorf("expected duplicate tap to be rejected, got %v", err)
	}

	b.Publish(K(DigitalChange, 1), nil)
	b.Publish(K(AnalogChange, 47), nil)

	if len(tap.got) != 2 {
		t.Fatalf("expected tap to see 2 messages, got %d", len(tap.got))
	}
	if tap.got[1].Key != K(AnalogChange, 47) {
		t.Errorf("unexpected key %v", tap.got[1].Key)
	}

	if err := b.Untap(tap); err != nil {
		t.Fatal(err)
	}
	b.Publish(K(DigitalChange, 1), nil)
	if len(tap.got) != 2 {
		t.Errorf("expected no deliveries after Untap, got %d", len(tap.got))
	}
}

func TestTapsNotCountedAsRecipients(t *testing.T) {
	b, _ := newTestBus(t)
	b.Tap(&recorder{})
	if n := b.Publish(K(DigitalChange, 1), nil); n != 0 {
		t.Errorf("expected 0 recipients, got %d", n)
	}
}

func TestStats(t *testing.T) {
	b, _ := newTestBus(t)
	key := K(DigitalChange, 2)
	b.Subscribe(key, &recorder{})
	b.Subscribe(key, &recorder{})
	b.Publish(key, nil)
	b.Publish(K(DigitalChange, 3), nil)

	s := b.Stats()
	if s.Published != 2 {
		t.Errorf("Published: got %d, want 2", s.Published)
	}
	if s.Delivered != 2 {
		t.Errorf("Delivered: got %d, want 2", s.Delivered)
	}
}

func TestVerboseLogsPublish(t *testing.T) {
	b, logs := newTestBus(t)
	b.SetVerbose(true)
	b.Publish(K(EncoderChange, 1), Encoder{Position: 3})
	if !strings.Contains(logs.String(), "EncoderChange@1") {
		t.Errorf("expected publish log line, got %q", logs.String())
	}
}

func TestNilListenerRejected(t *testing.T) {
	b, _ := newTestBus(t)
	if err := b.Subscribe(K(DigitalChange, 1), nil); err == nil {
		t.Error("expected error for nil listener")
	}
}

// sliceListener has a value receiver on an incomparable type.
type sliceListener []Message

func (sliceListener) Notify(Message) {}

func TestIncomparableListenerRejected(t *testing.T) {
	b, _ := newTestBus(t)
	key := K(DigitalChange, 1)

	for i := 0; i < 2; i++ {
		if err := b.Subscribe(key, sliceListener{}); !errors.Is(err, fault.Unsupported) {
			t.Fatalf("Subscribe #%d: expected Unsupported, got %v", i+1, err)
		}
	}
	if err := b.Tap(sliceListener{}); !errors.Is(err, fault.Unsupported) {
		t.Errorf("Tap: expected Unsupported, got %v", err)
	}
	if err := b.Unsubscribe(key, sliceListener{}); !errors.Is(err, fault.NotSubscribed) {
		t.Errorf("Unsubscribe: expected NotSubscribed, got %v", err)
	}
	if err := b.Untap(sliceListener{}); !errors.Is(err, fault.NotSubscribed) {
		t.Errorf("Untap: expected NotSubscribed, got %v", err)
	}
	if n := b.Count(key); n != 0 {
		t.Errorf("expected no listeners, got %d", n)
	}
}
