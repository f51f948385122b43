package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oualline/orange-empire/internal/dispatch"
	"github.com/oualline/orange-empire/internal/handler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "garden.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.HandlerTiming() != handler.DefaultTiming() {
		t.Errorf("timing: got %+v, want %+v", cfg.HandlerTiming(), handler.DefaultTiming())
	}
	if len(cfg.Buttons.Lines) != 8 || cfg.Buttons.Lines[3].Code != "4" {
		t.Errorf("unexpected default buttons %+v", cfg.Buttons.Lines)
	}
}

func TestDefaultButtonsReachHandlers(t *testing.T) {
	seen := map[string]bool{}
	for _, b := range Default().Buttons.Lines {
		if seen[b.Code] {
			t.Errorf("code %q used twice", b.Code)
		}
		seen[b.Code] = true
		if _, ok := dispatch.Buttons[b.Code[0]]; !ok {
			t.Errorf("line %d sends %q, which no handler answers", b.Line, b.Code)
		}
	}
	if !seen["8"] {
		t.Error("bell button 8 has no line")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Control.Socket != "/tmp/garden.control" {
		t.Errorf("socket: got %q", cfg.Control.Socket)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
relay:
  devices:
    - /dev/ttyUSB0
control:
  interface: eth0
timing:
  h2_ms: 2500
mqtt:
  broker: tcp://localhost:1883
buttons:
  lines:
    - line: 21
      code: "5"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(cfg.Relay.Devices) != 1 || cfg.Relay.Devices[0] != "/dev/ttyUSB0" {
		t.Errorf("devices: %v", cfg.Relay.Devices)
	}
	if cfg.Relay.Baud != 115200 {
		t.Errorf("baud default lost: %d", cfg.Relay.Baud)
	}
	if cfg.Control.Interface != "eth0" {
		t.Errorf("interface: %q", cfg.Control.Interface)
	}
	if cfg.HandlerTiming().H2 != 2500*time.Millisecond {
		t.Errorf("h2: %v", cfg.HandlerTiming().H2)
	}
	if cfg.HandlerTiming().Car != 6*time.Second {
		t.Errorf("car default lost: %v", cfg.HandlerTiming().Car)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.Queue != 64 {
		t.Errorf("mqtt: %+v", cfg.MQTT)
	}
	if len(cfg.Buttons.Lines) != 1 || cfg.Buttons.Lines[0].Line != 21 {
		t.Errorf("buttons: %+v", cfg.Buttons.Lines)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "relay: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no devices", func(c *Config) { c.Relay.Devices = nil }, "no devices"},
		{"zero baud", func(c *Config) { c.Relay.Baud = 0 }, "baud"},
		{"no socket", func(c *Config) { c.Control.Socket = "" }, "socket"},
		{"no pipe", func(c *Config) { c.Control.Pipe = "" }, "pipe"},
		{"zero dwell", func(c *Config) { c.Timing.C3Ms = 0 }, "c3_ms"},
		{"negative dwell", func(c *Config) { c.Timing.NoiseMs = -1 }, "noise_ms"},
		{"mqtt queue", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.Queue = 0 }, "queue"},
		{"duplicate line", func(c *Config) { c.Buttons.Lines[1].Line = c.Buttons.Lines[0].Line }, "twice"},
		{"letter code", func(c *Config) { c.Buttons.Lines[0].Code = "n" }, "single digit"},
		{"long code", func(c *Config) { c.Buttons.Lines[0].Code = "12" }, "single digit"},
		{"no chip", func(c *Config) { c.Buttons.Chip = "" }, "chip"},
		{"zero poll", func(c *Config) { c.Buttons.PollMs = 0 }, "poll_ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
