// Package status provides a thread-safe view of the console for the HTTP
// handlers and the MQTT system events.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
	"github.com/sweeney/shuttle-console/internal/pins"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SampleMs    int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	I2C         string
	Sim         bool
}

// Snapshot is a point-in-time view of console state. Its maps are copies and
// stay valid after the lock is released.
type Snapshot struct {
	Digital       map[int]bool
	Analog        map[int]uint16
	Encoders      map[int]int // by first encoder pin
	Counts        map[event.Kind]int
	Bus           event.Stats
	Pins          pins.Stats
	Ready         bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	MQTTDropped   uint64
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Kinds returns the counted kinds in name order.
func (s Snapshot) Kinds() []event.Kind {
	out := make([]event.Kind, 0, len(s.Counts))
	for k := range s.Counts {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Tracker holds mutable console state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Digital:   make(map[int]bool),
			Analog:    make(map[int]uint16),
			Encoders:  make(map[int]int),
			Counts:    make(map[event.Kind]int),
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetLevels replaces every level with the manager's committed cache and marks
// the console ready.
func (t *Tracker) SetLevels(s pins.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Digital = make(map[int]bool, len(s.Digital))
	for a, v := range s.Digital {
		t.snap.Digital[a] = v
	}
	t.snap.Analog = make(map[int]uint16, len(s.Analog))
	for a, v := range s.Analog {
		t.snap.Analog[a] = v
	}
	t.snap.Ready = true
}

func (t *Tracker) SetDigital(addr int, v bool) {
	t.mu.Lock()
	t.snap.Digital[addr] = v
	t.mu.Unlock()
}

func (t *Tracker) SetAnalog(addr int, v uint16) {
	t.mu.Lock()
	t.snap.Analog[addr] = v
	t.mu.Unlock()
}

func (t *Tracker) SetEncoder(addr, pos int) {
	t.mu.Lock()
	t.snap.Encoders[addr] = pos
	t.mu.Unlock()
}

// Count adds one to the counter for kind.
func (t *Tracker) Count(kind event.Kind) {
	t.mu.Lock()
	t.snap.Counts[kind]++
	t.mu.Unlock()
}

// SetStats records the bus and sampler counters. Called on every tick.
func (t *Tracker) SetStats(bus event.Stats, p pins.Stats) {
	t.mu.Lock()
	t.snap.Bus = bus
	t.snap.Pins = p
	t.mu.Unlock()
}

// SetMQTT sets the MQTT connection status and the bridge's drop counter.
func (t *Tracker) SetMQTT(connected bool, dropped uint64) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTDropped = dropped
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the console state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Digital = copyMap(t.snap.Digital)
	s.Analog = copyMap(t.snap.Analog)
	s.Encoders = copyMap(t.snap.Encoders)
	s.Counts = copyMap(t.snap.Counts)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
