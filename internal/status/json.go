package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Mode          string        `json:"mode"`
	NoiseActive   bool          `json:"noise_active"`
	Firmware      string        `json:"firmware,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Handlers      []HandlerJSON `json:"handlers"`
	Relays        []RelayJSON   `json:"relays"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// HandlerJSON is the JSON representation of one handler.
type HandlerJSON struct {
	Name    string `json:"name"`
	State   string `json:"state"`
	Since   string `json:"since,omitempty"`
	Presses int    `json:"presses"`
	Runs    int    `json:"runs"`
}

// RelayJSON is the JSON representation of one relay.
type RelayJSON struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	State   string `json:"state"`
	Actor   string `json:"actor,omitempty"`
	Changed string `json:"changed,omitempty"`
	Writes  int    `json:"writes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Device   string `json:"device"`
	Broker   string `json:"broker"`
	HTTPAddr string `json:"http_addr"`
	Socket   string `json:"socket"`
	Pipe     string `json:"pipe"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mode:          snap.Mode.String(),
		NoiseActive:   snap.NoiseActive,
		Firmware:      snap.Firmware,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Device:   snap.Config.Device,
			Broker:   snap.Config.Broker,
			HTTPAddr: snap.Config.HTTPAddr,
			Socket:   snap.Config.Socket,
			Pipe:     snap.Config.Pipe,
		},
	}

	for _, h := range snap.Handlers {
		state := string(h.State)
		if state == "" {
			state = "UNKNOWN"
		}
		inner.Handlers = append(inner.Handlers, HandlerJSON{
			Name:    h.ID.String(),
			State:   state,
			Since:   formatTime(h.Since),
			Presses: h.Presses,
			Runs:    h.Runs,
		})
	}
	for _, r := range snap.Relays {
		state := r.State.String()
		if r.Changed.IsZero() {
			state = "UNKNOWN"
		}
		inner.Relays = append(inner.Relays, RelayJSON{
			Index:   int(r.Relay),
			Label:   r.Relay.Label(),
			State:   state,
			Actor:   r.Actor,
			Changed: formatTime(r.Changed),
			Writes:  r.Writes,
		})
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
