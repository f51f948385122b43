// Package config holds the garden's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/oualline/orange-empire/internal/dispatch"
	"github.com/oualline/orange-empire/internal/handler"
	"github.com/oualline/orange-empire/internal/relay"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Relay   RelayConfig   `yaml:"relay"`
	Control ControlConfig `yaml:"control"`
	Timing  TimingConfig  `yaml:"timing"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Buttons ButtonsConfig `yaml:"buttons"`
}

// ---- RELAY BOARD ----

type RelayConfig struct {
	Devices []string `yaml:"devices"` // probed in order
	Baud    int      `yaml:"baud"`
}

// ---- CONTROL ----

type ControlConfig struct {
	Socket    string `yaml:"socket"`
	Pipe      string `yaml:"pipe"`
	Interface string `yaml:"interface"` // reported by the "i" command
}

// ---- DWELL TIMES ----

type TimingConfig struct {
	H2Ms     int `yaml:"h2_ms"`
	CarMs    int `yaml:"car_ms"`
	W4Ms     int `yaml:"w4_ms"`
	C3Ms     int `yaml:"c3_ms"`
	WigWagMs int `yaml:"wigwag_ms"`
	NoiseMs  int `yaml:"noise_ms"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker string `yaml:"broker"` // empty disables
	Queue  int    `yaml:"queue"`  // relay changes held while the publisher is busy
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables
}

// ---- BUTTONS (garden-buttons) ----

type ButtonsConfig struct {
	Chip       string         `yaml:"chip"`
	PollMs     int            `yaml:"poll_ms"`
	DebounceMs int            `yaml:"debounce_ms"`
	Lines      []ButtonConfig `yaml:"lines"`
}

type ButtonConfig struct {
	Line int    `yaml:"line"` // GPIO line offset on Chip
	Code string `yaml:"code"` // digit written to the button pipe
}

// Default returns the exhibit's configuration.
func Default() *Config {
	t := handler.DefaultTiming()
	cfg := &Config{
		Relay: RelayConfig{
			Devices: append([]string(nil), relay.DefaultDevices...),
			Baud:    relay.DefaultBaud,
		},
		Control: ControlConfig{
			Socket:    dispatch.DefaultControlPath,
			Pipe:      dispatch.DefaultButtonPath,
			Interface: "wlan0",
		},
		Timing: TimingConfig{
			H2Ms:     int(t.H2.Milliseconds()),
			CarMs:    int(t.Car.Milliseconds()),
			W4Ms:     int(t.W4.Milliseconds()),
			C3Ms:     int(t.C3.Milliseconds()),
			WigWagMs: int(t.WigWag.Milliseconds()),
			NoiseMs:  int(t.Noise.Milliseconds()),
		},
		MQTT: MQTTConfig{
			Queue: 64,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Buttons: ButtonsConfig{
			Chip:       "gpiochip0",
			PollMs:     50,
			DebounceMs: 100,
		},
	}
	// the button board's 8 inputs send the digits 1-8; 0 is not wired
	for i, line := range []int{4, 17, 27, 22, 5, 6, 13, 19} {
		cfg.Buttons.Lines = append(cfg.Buttons.Lines, ButtonConfig{
			Line: line,
			Code: string(rune('1' + i)),
		})
	}
	return cfg
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// HandlerTiming converts the dwell times for the handler set.
func (c *Config) HandlerTiming() handler.Timing {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }
	return handler.Timing{
		H2:     ms(c.Timing.H2Ms),
		Car:    ms(c.Timing.CarMs),
		W4:     ms(c.Timing.W4Ms),
		C3:     ms(c.Timing.C3Ms),
		WigWag: ms(c.Timing.WigWagMs),
		Noise:  ms(c.Timing.NoiseMs),
	}
}
