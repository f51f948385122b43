// Package logic contains the pure push-button debouncing used by the button
// reader. This package has NO external dependencies (no GPIO, OS, or
// time.Sleep). Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of a push button.
type State string

const (
	StatePressed  State = "PRESSED"
	StateReleased State = "RELEASED"
)

// ChannelState tracks debounce state for a single button.
type ChannelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents a single sample of every button.
type Input struct {
	Pressed []bool // true while held, already inverted from the raw active-low line
	Time    time.Time
}

// Press is a debounced press of one button.
type Press struct {
	Button int // index into Input.Pressed
	Time   time.Time
}
