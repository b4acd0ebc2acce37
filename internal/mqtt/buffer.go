package mqtt

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer keeps the most recent messages published while offline. When
// full, the oldest message is overwritten. Callers synchronize.
type ringBuffer struct {
	slots []bufferedMsg
	start int // oldest message
	n     int
	lost  int // overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

// push stores m and reports whether an older message was overwritten.
func (r *ringBuffer) push(m bufferedMsg) bool {
	size := len(r.slots)
	if r.n < size {
		r.slots[(r.start+r.n)%size] = m
		r.n++
		return false
	}
	r.slots[r.start] = m
	r.start = (r.start + 1) % size
	r.lost++
	return true
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.n)
	for i := range out {
		out[i] = r.slots[(r.start+i)%len(r.slots)]
	}
	r.start, r.n, r.lost = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int { return r.n }
