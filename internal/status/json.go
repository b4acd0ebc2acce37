package status

import (
	"encoding/json"
	"strconv"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details. Pin maps are keyed by address.
type StatusInner struct {
	Event         string            `json:"event,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Ready         bool              `json:"ready"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     string            `json:"start_time"`
	Timestamp     string            `json:"timestamp"`
	MQTT          MQTTStatus        `json:"mqtt"`
	Digital       map[string]int    `json:"digital"`
	Analog        map[string]uint16 `json:"analog"`
	Encoders      map[string]int    `json:"encoders"`
	Counts        map[string]int    `json:"event_counts"`
	Sampler       SamplerJSON       `json:"sampler"`
	Bus           BusJSON           `json:"bus"`
	Network       *NetworkJSON      `json:"network,omitempty"`
	Config        ConfigJSON        `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Dropped   uint64 `json:"dropped"`
}

// SamplerJSON reports sampling pass counters.
type SamplerJSON struct {
	Passes       uint64 `json:"passes"`
	ReadFailures uint64 `json:"read_failures"`
	Events       uint64 `json:"events"`
	LastPassUs   int64  `json:"last_pass_us"`
}

// BusJSON reports event bus counters.
type BusJSON struct {
	Published      uint64 `json:"published"`
	Delivered      uint64 `json:"delivered"`
	ListenerFaults uint64 `json:"listener_faults"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs    int64  `json:"sample_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	I2C         string `json:"i2c,omitempty"`
	Sim         bool   `json:"sim"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Dropped:   snap.MQTTDropped,
		},
		Digital:  make(map[string]int, len(snap.Digital)),
		Analog:   make(map[string]uint16, len(snap.Analog)),
		Encoders: make(map[string]int, len(snap.Encoders)),
		Counts:   make(map[string]int, len(snap.Counts)),
		Sampler: SamplerJSON{
			Passes:       snap.Pins.Passes,
			ReadFailures: snap.Pins.ReadFailures,
			Events:       snap.Pins.Events,
			LastPassUs:   snap.Pins.LastPass.Microseconds(),
		},
		Bus: BusJSON{
			Published:      snap.Bus.Published,
			Delivered:      snap.Bus.Delivered,
			ListenerFaults: snap.Bus.ListenerFaults,
		},
		Config: ConfigJSON{
			SampleMs:    snap.Config.SampleMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			I2C:         snap.Config.I2C,
			Sim:         snap.Config.Sim,
		},
	}
	for a, v := range snap.Digital {
		inner.Digital[strconv.Itoa(a)] = Level(v)
	}
	for a, v := range snap.Analog {
		inner.Analog[strconv.Itoa(a)] = v
	}
	for a, p := range snap.Encoders {
		inner.Encoders[strconv.Itoa(a)] = p
	}
	for k, n := range snap.Counts {
		inner.Counts[string(k)] = n
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// Level renders a raw digital level as 0 or 1.
func Level(v bool) int {
	if v {
		return 1
	}
	return 0
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
