package dispatch

import (
	"bufio"
	"errors"
	"io"
	"log"

	"github.com/oualline/orange-empire/internal/handler"
)

// Buttons maps the digit sent for each physical button to its handler.
// Buttons 3, 4 and 6 all sit at the 3 color light. '0' is not wired.
var Buttons = map[byte]handler.ID{
	'1': handler.H2,
	'2': handler.W4,
	'3': handler.C3,
	'4': handler.C3,
	'5': handler.Car,
	'6': handler.C3,
	'7': handler.LWW,
	'8': handler.Bell,
	'9': handler.UWW,
}

// Button presses button c and returns "OK" or "Unknown button". Besides the
// digits, 'n' or 'N' starts the noise suppression run.
func (d *Dispatcher) Button(c byte) string {
	id, ok := Buttons[c]
	if !ok && (c == 'n' || c == 'N') {
		id, ok = handler.Noise, true
	}
	if !ok {
		return "Unknown button"
	}
	d.pusher.Push(id)
	return "OK"
}

// ReadButtons reads presses from r until it fails. Line breaks are skipped;
// anything not in Buttons is logged and ignored. End of input returns nil.
func (d *Dispatcher) ReadButtons(r io.Reader) error {
	br := bufio.NewReader(r)
	for {
		c, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch c {
		case '\n', '\r', ' ':
			continue
		}

		id, ok := Buttons[c]
		if !ok {
			log.Printf("dispatch: unmapped button %q ignored", c)
			continue
		}
		log.Printf("dispatch: button %c -> %s", c, id)
		d.pusher.Push(id)
	}
}
