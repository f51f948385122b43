package config

import (
	"errors"
	"fmt"
)

// Validate checks configuration correctness. It does not modify cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if len(cfg.Relay.Devices) == 0 {
		return errors.New("relay: no devices listed")
	}
	if cfg.Relay.Baud <= 0 {
		return fmt.Errorf("relay: baud must be positive, got %d", cfg.Relay.Baud)
	}

	if cfg.Control.Socket == "" {
		return errors.New("control: socket path is empty")
	}
	if cfg.Control.Pipe == "" {
		return errors.New("control: pipe path is empty")
	}

	timings := []struct {
		name string
		ms   int
	}{
		{"h2_ms", cfg.Timing.H2Ms},
		{"car_ms", cfg.Timing.CarMs},
		{"w4_ms", cfg.Timing.W4Ms},
		{"c3_ms", cfg.Timing.C3Ms},
		{"wigwag_ms", cfg.Timing.WigWagMs},
		{"noise_ms", cfg.Timing.NoiseMs},
	}
	for _, t := range timings {
		if t.ms <= 0 {
			return fmt.Errorf("timing: %s must be positive, got %d", t.name, t.ms)
		}
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.Queue <= 0 {
		return fmt.Errorf("mqtt: queue must be positive, got %d", cfg.MQTT.Queue)
	}

	return validateButtons(&cfg.Buttons)
}

func validateButtons(b *ButtonsConfig) error {
	if len(b.Lines) == 0 {
		return nil
	}
	if b.Chip == "" {
		return errors.New("buttons: chip is empty")
	}
	if b.PollMs <= 0 {
		return fmt.Errorf("buttons: poll_ms must be positive, got %d", b.PollMs)
	}
	if b.DebounceMs < 0 {
		return fmt.Errorf("buttons: debounce_ms must not be negative, got %d", b.DebounceMs)
	}

	seen := make(map[int]bool, len(b.Lines))
	for _, l := range b.Lines {
		if l.Line < 0 {
			return fmt.Errorf("buttons: line %d is negative", l.Line)
		}
		if seen[l.Line] {
			return fmt.Errorf("buttons: line %d listed twice", l.Line)
		}
		seen[l.Line] = true

		if len(l.Code) != 1 || l.Code[0] < '0' || l.Code[0] > '9' {
			return fmt.Errorf("buttons: line %d: code %q is not a single digit", l.Line, l.Code)
		}
	}
	return nil
}
