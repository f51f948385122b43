package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/oualline/orange-empire/internal/handler"
	"github.com/oualline/orange-empire/internal/mqtt"
	"github.com/oualline/orange-empire/internal/relay"
	"github.com/oualline/orange-empire/internal/status"
	"github.com/oualline/orange-empire/internal/web"
	"golang.org/x/sync/errgroup"
)

var testTiming = handler.Timing{
	H2:     100 * time.Millisecond,
	Car:    40 * time.Millisecond,
	W4:     40 * time.Millisecond,
	C3:     40 * time.Millisecond,
	WigWag: 60 * time.Millisecond,
	Noise:  60 * time.Millisecond,
}

// garden wires an emulated board, the handler set, a tracker and an MQTT
// forwarder the way the daemon does.
type garden struct {
	emu     *relay.Emulator
	board   *relay.Board
	set     *handler.Set
	tracker *status.Tracker
	pub     *mqtt.FakePublisher
	fwd     *mqtt.Forwarder

	cancel context.CancelFunc
	g      *errgroup.Group
	done   bool
}

func newGarden(t *testing.T, pub *mqtt.FakePublisher) *garden {
	t.Helper()
	emu := relay.NewEmulator()
	emu.ReadTimeout = 50 * time.Millisecond
	board := relay.NewBoard(relay.NewLink(emu), false)

	tracker := status.NewTracker(time.Now(), status.Config{Device: "emulate", Broker: "tcp://broker.test:1883"})
	fwd := mqtt.NewForwarder(pub, 64)
	board.OnChange(func(c relay.Change) {
		tracker.RecordRelay(c)
		fwd.Enqueue(c)
	})

	set := handler.NewSet(board, testTiming, tracker.ObserveHandler)
	tracker.WatchShared(set.Shared())

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return set.Run(gctx) })
	g.Go(func() error { return fwd.Run(gctx) })

	gd := &garden{emu: emu, board: board, set: set, tracker: tracker, pub: pub, fwd: fwd, cancel: cancel, g: g}
	t.Cleanup(func() { gd.stop(t) })
	return gd
}

func (gd *garden) press(id handler.ID) {
	gd.tracker.RecordPress(id)
	gd.set.Push(id)
}

// stop cancels everything and returns the group's error.
func (gd *garden) stop(t *testing.T) error {
	t.Helper()
	if gd.done {
		return nil
	}
	gd.done = true
	gd.cancel()
	errc := make(chan error, 1)
	go func() { errc <- gd.g.Wait() }()
	select {
	case err := <-errc:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("garden did not stop")
		return nil
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func handlerState(tr *status.Tracker, id handler.ID) status.HandlerState {
	for _, h := range tr.Snapshot().Handlers {
		if h.ID == id {
			return h
		}
	}
	return status.HandlerState{}
}

func restingAll(tr *status.Tracker) bool {
	for _, h := range tr.Snapshot().Handlers {
		if h.State != handler.Rest {
			return false
		}
	}
	return true
}

// TestIntegrationPressToMQTT follows one press from the handler through the
// board to the published relay changes.
func TestIntegrationPressToMQTT(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	gd := newGarden(t, pub)
	eventually(t, "handlers at rest", func() bool { return restingAll(gd.tracker) })

	gd.press(handler.H2)
	eventually(t, "H2 on", func() bool { return gd.emu.Relay(relay.H2) == relay.On })
	eventually(t, "H2 back to rest", func() bool {
		h := handlerState(gd.tracker, handler.H2)
		return h.Runs == 1 && h.State == handler.Rest
	})
	if err := gd.stop(t); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var states []string
	for i, payload := range pub.Payloads {
		var parsed mqtt.Payload
		if err := json.Unmarshal(payload, &parsed); err != nil {
			t.Fatalf("payload %d: invalid JSON: %v", i, err)
		}
		if parsed.Relay.Timestamp == "" {
			t.Errorf("payload %d: missing timestamp", i)
		}
		if parsed.Relay.Index == int(relay.H2) {
			if parsed.Relay.Actor != "h2" || parsed.Relay.Label != relay.H2.Label() {
				t.Errorf("payload %d: %+v", i, parsed.Relay)
			}
			states = append(states, parsed.Relay.State)
		}
	}
	if fmt.Sprint(states) != "[Off On Off]" {
		t.Errorf("H2 states published %v, want [Off On Off]", states)
	}
}

// TestIntegrationPublishFailureDoesNotStopSignals checks that a broken
// broker never reaches the handlers.
func TestIntegrationPublishFailureDoesNotStopSignals(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker unavailable")
	gd := newGarden(t, pub)
	eventually(t, "handlers at rest", func() bool { return restingAll(gd.tracker) })

	gd.press(handler.H2)
	eventually(t, "H2 on", func() bool { return gd.emu.Relay(relay.H2) == relay.On })
	eventually(t, "H2 off", func() bool { return gd.emu.Relay(relay.H2) == relay.Off })

	if err := gd.stop(t); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(pub.Changes) != 0 {
		t.Errorf("recorded %d changes despite errors", len(pub.Changes))
	}
}

// TestIntegrationNoiseModeVisibleInStatus runs the noise sequence and
// watches the mode through tracker snapshots.
func TestIntegrationNoiseModeVisibleInStatus(t *testing.T) {
	gd := newGarden(t, mqtt.NewFakePublisher())
	eventually(t, "handlers at rest", func() bool { return restingAll(gd.tracker) })

	gd.press(handler.Noise)
	eventually(t, "low noise", func() bool {
		return gd.tracker.Snapshot().Mode == handler.LowNoise
	})

	// the 3 color handler ignores presses while the noise handler owns it
	gd.press(handler.C3)

	eventually(t, "normal again", func() bool {
		snap := gd.tracker.Snapshot()
		return snap.Mode == handler.Normal && !snap.NoiseActive && restingAll(gd.tracker)
	})

	noise := handlerState(gd.tracker, handler.Noise)
	if noise.Runs != 1 || noise.Presses != 1 {
		t.Errorf("noise runs=%d presses=%d, want 1/1", noise.Runs, noise.Presses)
	}
	if c3 := handlerState(gd.tracker, handler.C3); c3.Runs != 0 || c3.Presses != 1 {
		t.Errorf("c3 runs=%d presses=%d, want 0/1", c3.Runs, c3.Presses)
	}
}

// TestIntegrationStatusPage reads the JSON status page while a signal runs.
func TestIntegrationStatusPage(t *testing.T) {
	gd := newGarden(t, mqtt.NewFakePublisher())
	eventually(t, "handlers at rest", func() bool { return restingAll(gd.tracker) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := web.New("", gd.tracker)
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	gd.press(handler.W4)
	eventually(t, "W4 stepping", func() bool { return handlerState(gd.tracker, handler.W4).Runs == 1 })

	resp, err := http.Get("http://" + ln.Addr().String() + "/index.json")
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, body)
	}
	if parsed.Status.Config.Device != "emulate" {
		t.Errorf("device %q", parsed.Status.Config.Device)
	}
	if len(parsed.Status.Handlers) != len(handler.IDs()) {
		t.Errorf("%d handlers, want %d", len(parsed.Status.Handlers), len(handler.IDs()))
	}
	if len(parsed.Status.Relays) != relay.NumRelays {
		t.Errorf("%d relays, want %d", len(parsed.Status.Relays), relay.NumRelays)
	}
	for _, h := range parsed.Status.Handlers {
		if h.Name == "w4" && (h.Presses != 1 || h.Runs != 1) {
			t.Errorf("w4: %+v", h)
		}
	}
	if r := parsed.Status.Relays[relay.W4Yellow]; r.Actor != "w4" || r.Writes == 0 {
		t.Errorf("W4 yellow: %+v", r)
	}
	if r := parsed.Status.Relays[relay.Future0]; r.State != "UNKNOWN" {
		t.Errorf("untouched relay state %q, want UNKNOWN", r.State)
	}
}

// TestIntegrationRelayFailureStopsSet checks the fail-whole-process policy:
// one handler's relay error ends the whole group.
func TestIntegrationRelayFailureStopsSet(t *testing.T) {
	gd := newGarden(t, mqtt.NewFakePublisher())
	eventually(t, "handlers at rest", func() bool { return restingAll(gd.tracker) })

	gd.emu.SetSilent(true)
	gd.press(handler.Car)

	errc := make(chan error, 1)
	go func() { errc <- gd.g.Wait() }()
	select {
	case err := <-errc:
		if !errors.Is(err, relay.ErrTimeout) {
			t.Fatalf("got %v, want ErrTimeout", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("relay failure did not stop the set")
	}
}

// TestIntegrationShutdownEvent builds the SHUTDOWN payload from a live
// snapshot.
func TestIntegrationShutdownEvent(t *testing.T) {
	pub := mqtt.NewFakePublisher()
	gd := newGarden(t, pub)
	eventually(t, "handlers at rest", func() bool { return restingAll(gd.tracker) })
	gd.tracker.SetFirmware("00000008")
	gd.tracker.SetMQTTConnected(true)

	snap := gd.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "SHUTDOWN",
		Reason:     "SIGTERM",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"),
	}
	if err := pub.PublishSystem(event); err != nil {
		t.Fatal(err)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.Events()[0].RawPayload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status
	if s.Event != "SHUTDOWN" || s.Reason != "SIGTERM" {
		t.Errorf("event=%q reason=%q", s.Event, s.Reason)
	}
	if s.Firmware != "00000008" || !s.MQTT.Connected || s.Mode != "NORMAL" {
		t.Errorf("firmware=%q mqtt=%v mode=%q", s.Firmware, s.MQTT.Connected, s.Mode)
	}
	for _, h := range s.Handlers {
		if h.State != "REST" {
			t.Errorf("handler %s in %s at shutdown", h.Name, h.State)
		}
	}
}
