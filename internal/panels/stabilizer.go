package panels

import (
	"fmt"
	"math"
	"sync"

	"github.com/sweeney/shuttle-console/internal/encoder"
	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// Stabilizer events, keyed by the encoder's first pin.
const (
	StabilizerChanged  event.Kind = "StabilizerChanged"
	StabilizerUnstable event.Kind = "StabilizerUnstable"
	StabilizerCrashed  event.Kind = "StabilizerCrashed"
)

// Stabilizer tuning.
const (
	StabilizerStep       = 1.0 / 16 // stability per encoder detent
	StabilizerUnstableAt = 0.5
	StabilizerLimit      = 1.0
)

// Stabilizer encoder pins.
var (
	LeftStabilizerPins  = [4]int{1, 2, 3, 4}
	RightStabilizerPins = [4]int{17, 18, 19, 20}
)

// Stability is the payload of the stabilizer events.
type Stability struct {
	Value    float64 `json:"value"`    // -1 to 1
	Position int     `json:"position"` // encoder position, 0-15
}

// Stabilizer accumulates encoder steps into a stability value in [-1, 1].
// Each detent moves it by StabilizerStep along the shortest way round the
// encoder ring. StabilizerUnstable fires when |stability| first reaches
// StabilizerUnstableAt and StabilizerCrashed when it hits the limit; both
// re-arm once the value falls back below their threshold.
type Stabilizer struct {
	w   wiring
	enc *encoder.Encoder

	mu        sync.Mutex
	stability float64
	last      int
	unstable  bool
	crashed   bool
}

// NewStabilizer builds the encoder on p and subscribes to its changes.
func NewStabilizer(m *pins.Manager, p [4]int) (*Stabilizer, error) {
	enc, err := encoder.New(m, p[0], p[1], p[2], p[3])
	if err != nil {
		return nil, fmt.Errorf("stabilizer %d: %w", p[0], err)
	}
	s := &Stabilizer{enc: enc}
	s.w = wiring{pins: m, self: s}
	if err := s.w.bus(enc.Key()); err != nil {
		enc.Close()
		return nil, fmt.Errorf("stabilizer %d: %w", p[0], err)
	}
	return s, nil
}

// Pin returns the first encoder pin, which keys the stabilizer's events.
func (s *Stabilizer) Pin() int { return s.enc.Addresses()[0] }

// Encoder returns the underlying encoder.
func (s *Stabilizer) Encoder() *encoder.Encoder { return s.enc }

// Stability returns the current value.
func (s *Stabilizer) Stability() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stability
}

// Sync seeds the encoder from the hardware so the first movement is measured
// from the real position.
func (s *Stabilizer) Sync() error {
	if err := s.enc.Sync(); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = s.enc.Position()
	s.mu.Unlock()
	return nil
}

// Reset returns the stabilizer to 0 and re-arms both alarms.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	s.stability = 0
	s.unstable = false
	s.crashed = false
	s.mu.Unlock()
}

func (s *Stabilizer) Notify(msg event.Message) {
	p, ok := msg.Payload.(event.Encoder)
	if !ok {
		return
	}

	s.mu.Lock()
	d := encoder.Delta(s.last, p.Position)
	s.last = p.Position
	v := math.Max(-StabilizerLimit, math.Min(StabilizerLimit, s.stability+float64(d)*StabilizerStep))
	s.stability = v

	mag := math.Abs(v)
	becameUnstable := mag >= StabilizerUnstableAt && !s.unstable
	s.unstable = mag >= StabilizerUnstableAt
	crashed := mag >= StabilizerLimit && !s.crashed
	s.crashed = mag >= StabilizerLimit
	s.mu.Unlock()

	pin := s.Pin()
	payload := Stability{Value: v, Position: p.Position}
	s.w.publish(StabilizerChanged, pin, payload)
	if becameUnstable {
		s.w.publish(StabilizerUnstable, pin, payload)
	}
	if crashed {
		s.w.publish(StabilizerCrashed, pin, payload)
	}
}

// Close removes the stabilizer's and its encoder's subscriptions.
func (s *Stabilizer) Close() error {
	err := s.w.close()
	if eerr := s.enc.Close(); eerr != nil && err == nil {
		err = eerr
	}
	return err
}
