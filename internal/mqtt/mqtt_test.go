package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oualline/orange-empire/internal/relay"
)

func TestTopics(t *testing.T) {
	if TopicRelays != "garden/signals/relays" {
		t.Errorf("TopicRelays: got %q", TopicRelays)
	}
	if TopicSystem != "garden/signals/system" {
		t.Errorf("TopicSystem: got %q", TopicSystem)
	}
}

func TestFormatPayload(t *testing.T) {
	c := relay.Change{
		Time:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Actor: "c3",
		Relay: relay.C3Yellow,
		State: relay.On,
	}

	payload, err := FormatPayload(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := RelayPayload{
		Timestamp: "2026-02-02T22:18:12Z",
		Actor:     "c3",
		Index:     13,
		Label:     "C3/Yellow",
		State:     "On",
	}
	if parsed.Relay != want {
		t.Errorf("got %+v, want %+v", parsed.Relay, want)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	c := relay.Change{
		Time:  time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Actor: "lamp_test",
		Relay: relay.H2,
		State: relay.Off,
	}
	payload, _ := FormatPayload(c)

	want := `{"relay":{"timestamp":"2026-02-02T22:18:12Z","actor":"lamp_test","index":8,"label":"H2","state":"Off"}}`
	if string(payload) != want {
		t.Errorf("got  %s\nwant %s", payload, want)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := relay.Change{Time: time.Date(2026, 2, 3, 0, 18, 12, 0, loc), Relay: relay.Bell}

	payload, _ := FormatPayload(c)
	var parsed Payload
	json.Unmarshal(payload, &parsed)

	if parsed.Relay.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Relay.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"system":{"timestamp":"2026-02-02T22:18:12Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("got  %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})

	var raw map[string]map[string]interface{}
	json.Unmarshal(payload, &raw)
	if _, ok := raw["system"]["reason"]; ok {
		t.Error("reason should be omitted when empty")
	}
	if raw["system"]["event"] != "OFFLINE" {
		t.Errorf("event: got %v", raw["system"]["event"])
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	c := relay.Change{Time: time.Now(), Actor: "h2", Relay: relay.H2, State: relay.On}

	if err := f.PublishRelay(c); err != nil {
		t.Fatal(err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatal(err)
	}

	if f.ChangeCount() != 1 || f.Changes[0] != c || len(f.Payloads) != 1 {
		t.Errorf("changes: %+v", f.Changes)
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("system events: %+v", f.SystemEvents)
	}

	f.Close()
	if !f.Closed {
		t.Error("expected Closed")
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	boom := errors.New("boom")
	f.PublishError = boom
	f.PublishSystemError = boom

	if err := f.PublishRelay(relay.Change{}); !errors.Is(err, boom) {
		t.Errorf("PublishRelay: got %v", err)
	}
	if err := f.PublishSystem(SystemEvent{}); !errors.Is(err, boom) {
		t.Errorf("PublishSystem: got %v", err)
	}
	if len(f.Changes) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestForwarderPublishesInOrder(t *testing.T) {
	f := NewFakePublisher()
	fw := NewForwarder(f, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	for _, n := range []relay.Name{relay.W4Red, relay.W4Yellow, relay.W4Green} {
		fw.Enqueue(relay.Change{Time: time.Now(), Actor: "w4", Relay: n, State: relay.On})
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.ChangeCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.Changes) != 3 {
		t.Fatalf("got %d changes, want 3", len(f.Changes))
	}
	for i, want := range []relay.Name{relay.W4Red, relay.W4Yellow, relay.W4Green} {
		if f.Changes[i].Relay != want {
			t.Errorf("change %d: got %s, want %s", i, f.Changes[i].Relay, want)
		}
	}
}

func TestForwarderDropsWhenFull(t *testing.T) {
	f := NewFakePublisher()
	fw := NewForwarder(f, 2)

	for i := 0; i < 5; i++ {
		fw.Enqueue(relay.Change{Relay: relay.Bell})
	}
	if fw.Dropped() != 3 {
		t.Errorf("Dropped: got %d, want 3", fw.Dropped())
	}

	// a cancelled Run still publishes what was queued
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fw.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(f.Changes) != 2 {
		t.Errorf("got %d changes, want 2", len(f.Changes))
	}
}

func TestForwarderSurvivesPublishErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker away")
	fw := NewForwarder(f, 4)
	fw.Enqueue(relay.Change{Relay: relay.H2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := fw.Run(ctx); err != nil {
		t.Errorf("Run: %v", err)
	}
}
