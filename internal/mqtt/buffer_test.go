package mqtt

import "testing"

func msg(b byte) bufferedMsg { return bufferedMsg{topic: "t", payload: []byte{b}} }

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(4)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushes   int
		want     []byte
		lost     int
	}{
		{"partial", 5, 3, []byte{0, 1, 2}, 0},
		{"exactly full", 4, 4, []byte{0, 1, 2, 3}, 0},
		{"overflow keeps newest", 5, 8, []byte{3, 4, 5, 6, 7}, 3},
		{"wraps twice", 3, 7, []byte{4, 5, 6}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newRingBuffer(tt.capacity)
			overwrites := 0
			for i := 0; i < tt.pushes; i++ {
				if rb.push(msg(byte(i))) {
					overwrites++
				}
			}
			if overwrites != tt.lost || rb.lost != tt.lost {
				t.Errorf("lost: got %d/%d, want %d", overwrites, rb.lost, tt.lost)
			}
			if rb.len() != len(tt.want) {
				t.Errorf("len: got %d, want %d", rb.len(), len(tt.want))
			}
			got := rb.drainAll()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d items, want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if m.payload[0] != tt.want[i] {
					t.Errorf("item %d: got %d, want %d", i, m.payload[0], tt.want[i])
				}
			}
			if rb.len() != 0 || rb.lost != 0 {
				t.Errorf("drain should reset, len=%d lost=%d", rb.len(), rb.lost)
			}
		})
	}
}

func TestRingBufferReusableAfterDrain(t *testing.T) {
	rb := newRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.push(msg(byte(i)))
	}
	rb.drainAll()

	rb.push(msg(10))
	rb.push(msg(11))
	got := rb.drainAll()
	if len(got) != 2 || got[0].payload[0] != 10 || got[1].payload[0] != 11 {
		t.Errorf("unexpected drain after reuse: %+v", got)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: TopicSystem, payload: []byte(`{"x":1}`), qos: 1, retained: true})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != `{"x":1}` || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}
