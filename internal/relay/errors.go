package relay

import (
	"errors"
	"fmt"
)

// Protocol failures. Every one of them is fatal to the operation that hit it;
// the link does not retry.
var (
	ErrTimeout        = errors.New("timeout")
	ErrEcho           = errors.New("echo error")
	ErrFraming        = errors.New("framing error")
	ErrWrite          = errors.New("unable to write to device")
	ErrVersion        = errors.New("unsupported firmware version")
	ErrDeviceNotFound = errors.New("could not find device")
)

// Error describes a failed board operation.
type Error struct {
	Op  string // "exec", "query", "sync", "version", "probe"
	Cmd string // command text, if any
	Err error
}

func (e *Error) Error() string {
	if e.Cmd == "" {
		return fmt.Sprintf("relay: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("relay: %s %q: %v", e.Op, e.Cmd, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
