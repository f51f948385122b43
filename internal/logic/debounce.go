package logic

import "time"

// Debouncer tracks button states and reports debounced presses.
type Debouncer struct {
	debounceDuration time.Duration
	buttons          []ChannelState
	baselined        bool
	counts           []int
}

// NewDebouncer creates a debouncer for n buttons. A state must hold for
// debounceDuration before it is believed; zero accepts every sample.
func NewDebouncer(n int, debounceDuration time.Duration) *Debouncer {
	return &Debouncer{
		debounceDuration: debounceDuration,
		buttons:          make([]ChannelState, n),
		counts:           make([]int, n),
	}
}

// Process takes a new sample and returns the buttons that became pressed.
// Nothing is reported until every button has a baseline, so a button held
// down at startup is not a press. Samples with the wrong number of buttons
// are ignored.
func (d *Debouncer) Process(input Input) []Press {
	if len(input.Pressed) != len(d.buttons) {
		return nil
	}

	var presses []Press
	for i, pressed := range input.Pressed {
		if d.processButton(&d.buttons[i], boolToState(pressed), input.Time) && d.baselined {
			presses = append(presses, Press{Button: i, Time: input.Time})
			d.counts[i]++
		}
	}

	if !d.baselined {
		d.baselined = true
		for _, b := range d.buttons {
			if !b.Baselined {
				d.baselined = false
				break
			}
		}
	}
	return presses
}

// processButton handles debounce logic for a single button.
// Returns true when the stable state changed to pressed.
func (d *Debouncer) processButton(b *ChannelState, newState State, now time.Time) bool {
	if b.Baselined && newState == b.Stable {
		// bounce back to the stable state, forget the pending one
		b.Pending = ""
		return false
	}

	if b.Pending != newState {
		b.Pending = newState
		b.PendingSince = now
	}
	if now.Sub(b.PendingSince) < d.debounceDuration {
		return false
	}

	b.Pending = ""
	if !b.Baselined {
		b.Stable = newState
		b.Baselined = true
		return false
	}
	b.Stable = newState
	return newState == StatePressed
}

func boolToState(b bool) State {
	if b {
		return StatePressed
	}
	return StateReleased
}

// IsBaselined returns whether every button has a baseline.
func (d *Debouncer) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the stable state of button i.
func (d *Debouncer) CurrentState(i int) State {
	if i < 0 || i >= len(d.buttons) {
		return ""
	}
	return d.buttons[i].Stable
}

// Counts returns the number of presses per button since startup.
func (d *Debouncer) Counts() []int {
	return append([]int(nil), d.counts...)
}
