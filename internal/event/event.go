// Package event is the console's publish/subscribe fabric.
//
// A message is addressed by a Key, a (Kind, Address) pair compared by value,
// so independent components can compute the same key without sharing anything
// but the Bus they were handed. Delivery is synchronous and happens in the
// publisher's goroutine, normally the sampling pass.
package event

import "strconv"

// Kind names a class of event. Core kinds are declared here; panels declare
// their own next to the code that publishes them.
type Kind string

const (
	DigitalRising  Kind = "DigitalRising"
	DigitalFalling Kind = "DigitalFalling"
	DigitalChange  Kind = "DigitalChange"
	AnalogChange   Kind = "AnalogChange"
	EncoderChange  Kind = "EncoderChange"
)

// Key identifies a message stream, e.g. DigitalRising@12.
type Key struct {
	Kind    Kind
	Address int
}

// K is shorthand for Key{kind, addr}.
func K(kind Kind, addr int) Key { return Key{Kind: kind, Address: addr} }

func (k Key) String() string {
	return string(k.Kind) + "@" + strconv.Itoa(k.Address)
}

// Message is what listeners receive.
type Message struct {
	Key     Key
	Payload any
}

// Digital is the payload of DigitalRising, DigitalFalling and DigitalChange.
// Value is the raw level; false (0) is the active level on pulled-up inputs.
type Digital struct {
	Address int  `json:"address"`
	Value   bool `json:"value"`
}

// Analog is the payload of AnalogChange.
type Analog struct {
	Address int    `json:"address"`
	Value   uint16 `json:"value"`
}

// Encoder is the payload of EncoderChange.
type Encoder struct {
	Position int `json:"position"` // 0-15
}

// Listener receives messages. Listeners are identified by interface equality,
// so implementations must be comparable; the bus rejects other types with
// fault.Unsupported. Pointer receivers are the norm.
type Listener interface {
	Notify(msg Message)
}

// FuncListener adapts a closure into a Listener with a stable identity.
// Keep the returned pointer to unsubscribe later.
type FuncListener struct {
	fn func(Message)
}

// Func wraps fn. Each call returns a distinct listener.
func Func(fn func(Message)) *FuncListener {
	return &FuncListener{fn: fn}
}

// Notify calls the wrapped function.
func (f *FuncListener) Notify(msg Message) { f.fn(msg) }
