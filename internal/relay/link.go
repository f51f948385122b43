// Package relay drives the serial relay/GPIO board.
//
// The board speaks a line protocol: a command is sent terminated by '\r', the
// board echoes every character followed by "\n\r", optionally streams a payload
// terminated by "\n\r", and finally sends the '>' prompt. A Link runs that whole
// exchange under one lock so concurrent callers never interleave on the wire.
package relay

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// ByteTimeout bounds every single byte read from the board.
const ByteTimeout = 1500 * time.Millisecond

// Prompt is sent by the board when it is ready for the next command.
const Prompt = '>'

// initString wakes the board's command parser after open.
const initString = "\r\r\r"

// AcceptedVersions lists the firmware identifiers the daemon trusts.
var AcceptedVersions = []string{"00000001", "00000008"}

// Link owns the connection to the board. The zero value is not usable;
// use NewLink or NewSimulatedLink.
type Link struct {
	mu       sync.Mutex
	port     io.ReadWriter
	simulate bool
}

// NewLink wraps an open port. The port must return (0, io.EOF) or (0, nil)
// from Read when no byte arrives within its read timeout, as a serial port
// configured with ReadTimeout does.
func NewLink(port io.ReadWriter) *Link {
	return &Link{port: port}
}

// NewSimulatedLink returns a link that touches no hardware: commands are
// logged and queries return canned values.
func NewSimulatedLink() *Link {
	return &Link{simulate: true}
}

// Simulated reports whether the link bypasses the hardware.
func (l *Link) Simulated() bool {
	return l.simulate
}

// Exec sends a command that returns no payload, only the prompt.
func (l *Link) Exec(cmd string) error {
	if l.simulate {
		log.Printf("relay: simulate: %s", cmd)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.send(cmd); err != nil {
		return &Error{Op: "exec", Cmd: cmd, Err: err}
	}
	ch, err := l.readByte()
	if err != nil {
		return &Error{Op: "exec", Cmd: cmd, Err: err}
	}
	if ch != Prompt {
		return &Error{Op: "exec", Cmd: cmd, Err: fmt.Errorf("%w: prompt: got %q", ErrFraming, ch)}
	}
	return nil
}

// Query sends a command and returns its payload.
func (l *Link) Query(cmd string) (string, error) {
	if l.simulate {
		log.Printf("relay: simulate: %s", cmd)
		return cannedResponse(cmd), nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.send(cmd); err != nil {
		return "", &Error{Op: "query", Cmd: cmd, Err: err}
	}

	var payload strings.Builder
	for {
		ch, err := l.readByte()
		if err != nil {
			return "", &Error{Op: "query", Cmd: cmd, Err: err}
		}
		if ch != '\n' {
			payload.WriteByte(ch)
			continue
		}
		if err := l.expect('\r', "payload return"); err != nil {
			return "", &Error{Op: "query", Cmd: cmd, Err: err}
		}
		if err := l.expect(Prompt, "prompt"); err != nil {
			return "", &Error{Op: "query", Cmd: cmd, Err: err}
		}
		return payload.String(), nil
	}
}

// Sync sends the wake-up string and discards whatever the board sends back
// until it goes quiet for one read timeout.
func (l *Link) Sync() error {
	if l.simulate {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if n, err := l.port.Write([]byte(initString)); err != nil || n != len(initString) {
		return &Error{Op: "sync", Err: writeErr(err)}
	}
	for {
		_, err := l.readByte()
		if errors.Is(err, ErrTimeout) {
			return nil
		}
		if err != nil {
			return &Error{Op: "sync", Err: err}
		}
	}
}

// Version queries the firmware identifier and checks it against
// AcceptedVersions.
func (l *Link) Version() (string, error) {
	ver, err := l.Query("ver")
	if err != nil {
		return "", err
	}
	for _, ok := range AcceptedVersions {
		if ver == ok {
			return ver, nil
		}
	}
	return ver, &Error{Op: "version", Cmd: "ver", Err: fmt.Errorf("%w: %q", ErrVersion, ver)}
}

// Close closes the port if it is closable.
func (l *Link) Close() error {
	if c, ok := l.port.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// send writes the command and verifies its echo. Caller holds l.mu.
func (l *Link) send(cmd string) error {
	full := cmd + "\r"
	if n, err := l.port.Write([]byte(full)); err != nil || n != len(full) {
		return writeErr(err)
	}

	for i := 0; i < len(cmd); i++ {
		ch, err := l.readByte()
		if err != nil {
			return err
		}
		if ch != cmd[i] {
			return fmt.Errorf("%w: position %d: got %q, want %q", ErrEcho, i, ch, cmd[i])
		}
	}
	if err := l.expect('\n', "echo linefeed"); err != nil {
		return err
	}
	return l.expect('\r', "echo return")
}

func (l *Link) expect(want byte, what string) error {
	ch, err := l.readByte()
	if err != nil {
		return err
	}
	if ch != want {
		return fmt.Errorf("%w: %s: got %q, want %q", ErrFraming, what, ch, want)
	}
	return nil
}

// readByte reads exactly one byte; a read that returns nothing is a timeout.
func (l *Link) readByte() (byte, error) {
	var buf [1]byte
	n, err := l.port.Read(buf[:])
	if n == 1 {
		return buf[0], nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return 0, ErrTimeout
	}
	return 0, fmt.Errorf("read: %w", err)
}

func writeErr(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return ErrWrite
}

// cannedResponse is what a simulated board answers.
func cannedResponse(cmd string) string {
	switch {
	case cmd == "ver":
		return AcceptedVersions[len(AcceptedVersions)-1]
	case strings.HasPrefix(cmd, "gpio read"):
		return "1"
	case strings.HasPrefix(cmd, "relay read"):
		return "off"
	}
	return ""
}
