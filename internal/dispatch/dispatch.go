// Package dispatch turns button presses and control commands into handler
// triggers and relay operations.
//
// Presses arrive as single ASCII digits on a named pipe written by the
// button reader. Commands arrive as lines on a UNIX control socket, or on
// the console in debug mode.
package dispatch

import (
	"github.com/oualline/orange-empire/internal/handler"
	"github.com/oualline/orange-empire/internal/relay"
)

// Board is the part of the relay board the command language needs.
type Board interface {
	Set(actor string, name relay.Name, state relay.State) error
	Read(name relay.Name) (string, error)
	ReadGPIO(line int) (string, error)
	Reset() error
}

// Pusher posts a press to a handler.
type Pusher interface {
	Push(id handler.ID) bool
}

// PushFunc adapts a function to Pusher.
type PushFunc func(id handler.ID) bool

func (f PushFunc) Push(id handler.ID) bool { return f(id) }

// Dispatcher routes presses and commands.
type Dispatcher struct {
	board  Board
	pusher Pusher
	iface  string
}

// New creates a Dispatcher. iface is the network interface reported by the
// "i" command.
func New(board Board, pusher Pusher, iface string) *Dispatcher {
	return &Dispatcher{board: board, pusher: pusher, iface: iface}
}
