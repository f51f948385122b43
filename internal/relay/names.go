package relay

import "fmt"

// Name identifies a physical relay output. The value is the board's relay index.
type Name int

// Relay assignments on the 16 channel board.
const (
	Future0   Name = iota // [0] spare
	Future1               // [1] spare
	Bell                  // [2] crossing bell
	TrackSemR             // [3] track car semaphore right
	TrackSemL             // [4] track car semaphore left
	UpperWW               // [5] upper quadrant wig wag
	Future6               // [6] spare
	LowerWW               // [7] lower quadrant wig wag
	H2                    // [8] H2 dwarf signal
	W4Red                 // [9] 4 white lights / red indicator
	W4Yellow              // [10] 4 white lights / yellow indicator
	W4Green               // [11] 4 white lights / green indicator
	C3Red                 // [12] 3 color red
	C3Yellow              // [13] 3 color yellow
	C3Green               // [14] 3 color green
	TrackCar              // [15] track car (dots, light)
)

// NumRelays is the number of relay outputs on the board.
const NumRelays = 16

var labels = [NumRelays]string{
	"Future 0",
	"Future 1",
	"Bell",
	"Track Sem. R",
	"Track Sem. L",
	"Upper WW",
	"Future 6",
	"Lower WW",
	"H2",
	"4W/Red",
	"4W/Yellow",
	"4W/Green",
	"C3/Red",
	"C3/Yellow",
	"C3/Green",
	"Track Car",
}

// Names returns every relay in index order.
func Names() []Name {
	out := make([]Name, NumRelays)
	for i := range out {
		out[i] = Name(i)
	}
	return out
}

// Valid reports whether n is a relay index on the board.
func (n Name) Valid() bool {
	return n >= 0 && n < NumRelays
}

// Label returns the human-readable label used in status output.
func (n Name) Label() string {
	if !n.Valid() {
		return fmt.Sprintf("Relay %d", int(n))
	}
	return labels[n]
}

func (n Name) String() string {
	return n.Label()
}

// Hex returns the protocol identifier: uppercase hex, no prefix.
func (n Name) Hex() string {
	return fmt.Sprintf("%X", int(n))
}

// State is the on/off state of a relay.
type State bool

const (
	Off State = false
	On  State = true
)

func (s State) String() string {
	if s {
		return "On"
	}
	return "Off"
}

// word is the protocol spelling used in relay on/off commands.
func (s State) word() string {
	if s {
		return "on"
	}
	return "off"
}

// ParseState converts a relay read payload ("on"/"off") to a State.
func ParseState(payload string) (State, error) {
	switch payload {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	}
	return Off, fmt.Errorf("relay: unexpected relay state %q", payload)
}

// GPIO input lines wired to the override switches.
const (
	SwitchNoSound  = 0 // "no sound" switch; reads "0" when sound is disabled
	SwitchLowNoise = 1 // "low noise" switch; reads "0" when asserted
)

// GPIOLines is the number of GPIO lines re-read after a reset.
const GPIOLines = 10

// StatusGPIOs is the number of GPIO lines reported in status output.
const StatusGPIOs = 2
