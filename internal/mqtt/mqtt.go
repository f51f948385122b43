// Package mqtt publishes relay changes and daemon lifecycle events, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/oualline/orange-empire/internal/relay"
)

// TopicRelays gets one message per relay write.
const TopicRelays = "garden/signals/relays"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "garden/signals/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishRelay sends one relay change to the broker.
	// A failure is logged by the caller; it never stops the signals.
	PublishRelay(c relay.Change) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (startup, shutdown, offline).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", or the error that stopped the daemon
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload is the relay change message.
type Payload struct {
	Relay RelayPayload `json:"relay"`
}

// RelayPayload contains one relay write.
type RelayPayload struct {
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Index     int    `json:"index"`
	Label     string `json:"label"`
	State     string `json:"state"`
}

// FormatPayload creates the JSON payload for a relay change.
func FormatPayload(c relay.Change) ([]byte, error) {
	payload := Payload{
		Relay: RelayPayload{
			Timestamp: c.Time.UTC().Format(time.RFC3339Nano),
			Actor:     c.Actor,
			Index:     int(c.Relay),
			Label:     c.Relay.Label(),
			State:     c.State.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the payload for simple system events (LWT) that don't
// carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
