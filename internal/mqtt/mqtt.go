// Package mqtt forwards console events to an MQTT broker, with an abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sweeney/shuttle-console/internal/event"
)

// TopicEvents is the prefix of the per-key event topics.
const TopicEvents = "shuttle/console/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "shuttle/console/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a console event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(ev Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(ev SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is a bus message stamped with the time it was published.
type Event struct {
	Timestamp time.Time
	Key       event.Key
	Payload   any
}

// Topic returns shuttle/console/events/<Kind>/<Address>.
func (e Event) Topic() string {
	return TopicEvents + "/" + string(e.Key.Kind) + "/" + strconv.Itoa(e.Key.Address)
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Event EventPayload `json:"event"`
}

// EventPayload contains the event details. Data is the bus payload as
// published.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	Address   int    `json:"address"`
	Data      any    `json:"data,omitempty"`
}

// FormatPayload creates the JSON payload for a console event.
func FormatPayload(ev Event) ([]byte, error) {
	payload := Payload{
		Event: EventPayload{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
			Key:       ev.Key.String(),
			Kind:      string(ev.Key.Kind),
			Address:   ev.Key.Address,
			Data:      ev.Payload,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If ev.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(ev SystemEvent) ([]byte, error) {
	if ev.RawPayload != nil {
		return ev.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Event:     ev.Event,
			Reason:    ev.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes if the console
// drops off without a clean shutdown.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "LWT"}})
	return data
}
