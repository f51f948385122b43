// Package status provides a thread-safe status tracker for the garden daemon.
// Handlers, the relay board and the MQTT publisher write to it; the HTTP
// server and lifecycle events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/oualline/orange-empire/internal/handler"
	"github.com/oualline/orange-empire/internal/relay"
)

// Config contains daemon configuration for display.
type Config struct {
	Device   string // serial device in use, "simulate" or "emulate"
	Broker   string
	HTTPAddr string
	Socket   string
	Pipe     string
}

// HandlerState is what a handler was last seen doing.
type HandlerState struct {
	ID      handler.ID
	State   handler.State
	Since   time.Time
	Presses int // presses delivered
	Runs    int // times it left REST
}

// RelayState is the last write to a relay.
type RelayState struct {
	Relay   relay.Name
	State   relay.State
	Actor   string
	Changed time.Time // zero until the first write
	Writes  int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Handlers      []HandlerState // in handler order
	Relays        [relay.NumRelays]RelayState
	Mode          handler.Mode
	NoiseActive   bool
	Firmware      string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	shared *handler.Shared
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
	for _, id := range handler.IDs() {
		t.snap.Handlers = append(t.snap.Handlers, HandlerState{ID: id})
	}
	for _, n := range relay.Names() {
		t.snap.Relays[n].Relay = n
	}
	return t
}

// WatchShared makes snapshots report the mode and latch from shared.
func (t *Tracker) WatchShared(shared *handler.Shared) {
	t.mu.Lock()
	t.shared = shared
	t.mu.Unlock()
}

// ObserveHandler records a handler state change. It has the
// handler.Observer signature.
func (t *Tracker) ObserveHandler(id handler.ID, state handler.State) {
	if !id.Valid() {
		return
	}
	t.mu.Lock()
	h := &t.snap.Handlers[id]
	if h.State == handler.Rest && state != handler.Rest {
		h.Runs++
	}
	h.State = state
	h.Since = time.Now()
	t.mu.Unlock()
}

// RecordPress counts a press delivered to a handler.
func (t *Tracker) RecordPress(id handler.ID) {
	if !id.Valid() {
		return
	}
	t.mu.Lock()
	t.snap.Handlers[id].Presses++
	t.mu.Unlock()
}

// RecordRelay records a relay write. It fits relay.Board.OnChange.
func (t *Tracker) RecordRelay(c relay.Change) {
	if !c.Relay.Valid() {
		return
	}
	t.mu.Lock()
	r := &t.snap.Relays[c.Relay]
	r.State = c.State
	r.Actor = c.Actor
	r.Changed = c.Time
	r.Writes++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetFirmware records the relay board firmware version.
func (t *Tracker) SetFirmware(v string) {
	t.mu.Lock()
	t.snap.Firmware = v
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Handlers = append([]HandlerState(nil), t.snap.Handlers...)
	shared := t.shared
	t.mu.RUnlock()

	if shared != nil {
		s.Mode = shared.Mode()
		s.NoiseActive = shared.Active()
	}
	s.Now = time.Now()
	return s
}
