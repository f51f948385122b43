package relay

import (
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Emulator is an in-memory relay board that speaks the wire protocol.
// It stands in for the serial port in tests and in bench (-emulate) mode.
type Emulator struct {
	// ReadTimeout is how long Read waits for output before reporting
	// a timeout with (0, io.EOF), like a serial port does.
	ReadTimeout time.Duration

	mu        sync.Mutex
	ready     chan struct{}
	pending   []byte
	out       []byte
	relays    [NumRelays]bool
	gpio      [GPIOLines]string
	version   string
	corruptAt int
	silent    bool
	closed    bool
	writes    [][]byte
	commands  []string
}

// NewEmulator returns a board with every relay off, every GPIO line reading
// "1" and firmware version 00000008.
func NewEmulator() *Emulator {
	e := &Emulator{
		ReadTimeout: ByteTimeout,
		ready:       make(chan struct{}, 1),
		version:     "00000008",
		corruptAt:   -1,
	}
	for i := range e.gpio {
		e.gpio[i] = "1"
	}
	return e
}

// SetVersion sets the firmware identifier reported by "ver".
func (e *Emulator) SetVersion(v string) {
	e.mu.Lock()
	e.version = v
	e.mu.Unlock()
}

// CorruptEcho makes the echo of the next command wrong at byte position pos.
func (e *Emulator) CorruptEcho(pos int) {
	e.mu.Lock()
	e.corruptAt = pos
	e.mu.Unlock()
}

// SetSilent stops the board from answering anything.
func (e *Emulator) SetSilent(silent bool) {
	e.mu.Lock()
	e.silent = silent
	e.mu.Unlock()
}

// SetGPIO sets the value returned by "gpio read <line>".
func (e *Emulator) SetGPIO(line int, value string) {
	e.mu.Lock()
	if line >= 0 && line < GPIOLines {
		e.gpio[line] = value
	}
	e.mu.Unlock()
}

// Relay returns the current state of a relay.
func (e *Emulator) Relay(n Name) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !n.Valid() {
		return Off
	}
	return State(e.relays[n])
}

// Writes returns a copy of every Write call the board has received.
func (e *Emulator) Writes() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]byte, len(e.writes))
	for i, w := range e.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Commands returns every complete command line received, in order.
func (e *Emulator) Commands() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// Write accepts command bytes; each '\r' completes a command.
func (e *Emulator) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, io.ErrClosedPipe
	}
	e.writes = append(e.writes, append([]byte(nil), p...))
	for _, b := range p {
		if b != '\r' {
			e.pending = append(e.pending, b)
			continue
		}
		cmd := string(e.pending)
		e.pending = e.pending[:0]
		e.commands = append(e.commands, cmd)
		e.process(cmd)
	}
	if len(e.out) > 0 {
		select {
		case e.ready <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Read returns pending board output, or (0, io.EOF) after ReadTimeout.
func (e *Emulator) Read(p []byte) (int, error) {
	deadline := time.NewTimer(e.ReadTimeout)
	defer deadline.Stop()
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return 0, io.ErrClosedPipe
		}
		if len(e.out) > 0 {
			n := copy(p, e.out)
			e.out = e.out[n:]
			e.mu.Unlock()
			return n, nil
		}
		e.mu.Unlock()

		select {
		case <-e.ready:
		case <-deadline.C:
			return 0, io.EOF
		}
	}
}

// Close shuts the emulator down.
func (e *Emulator) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	return nil
}

// process produces the board's answer to one command. Caller holds e.mu.
func (e *Emulator) process(cmd string) {
	if e.silent {
		return
	}

	echo := []byte(cmd)
	if e.corruptAt >= 0 && e.corruptAt < len(echo) {
		echo[e.corruptAt] ^= 0x01
		e.corruptAt = -1
	}
	e.out = append(e.out, echo...)
	e.out = append(e.out, '\n', '\r')

	fields := strings.Fields(cmd)
	switch {
	case len(fields) == 1 && fields[0] == "ver":
		e.payload(e.version)
	case len(fields) == 1 && fields[0] == "reset":
		e.relays = [NumRelays]bool{}
	case len(fields) == 3 && fields[0] == "relay":
		idx, err := strconv.ParseInt(fields[2], 16, 0)
		if err != nil || !Name(idx).Valid() {
			break
		}
		switch fields[1] {
		case "on":
			e.relays[idx] = true
		case "off":
			e.relays[idx] = false
		case "read":
			e.payload(State(e.relays[idx]).word())
		}
	case len(fields) == 3 && fields[0] == "gpio" && fields[1] == "read":
		line, err := strconv.Atoi(fields[2])
		if err != nil || line < 0 || line >= GPIOLines {
			break
		}
		e.payload(e.gpio[line])
	}
	e.out = append(e.out, Prompt)
}

func (e *Emulator) payload(s string) {
	e.out = append(e.out, s...)
	e.out = append(e.out, '\n', '\r')
}
