package relay

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
)

// Change records one relay write.
type Change struct {
	Time  time.Time
	Actor string // name of the thread that made the change
	Relay Name
	State State
}

// Board is the typed relay/GPIO API on top of a Link.
type Board struct {
	link    *Link
	verbose bool

	mu       sync.RWMutex
	onChange []func(Change)
}

// NewBoard creates a Board. With verbose set every relay write is logged.
func NewBoard(link *Link, verbose bool) *Board {
	return &Board{link: link, verbose: verbose}
}

// OnChange registers fn to be called after every successful relay write.
// fn runs on the writer's goroutine and must not block.
func (b *Board) OnChange(fn func(Change)) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// Set switches a relay. actor names the caller for the log.
func (b *Board) Set(actor string, name Name, state State) error {
	if !name.Valid() {
		return fmt.Errorf("relay: invalid relay %d", int(name))
	}
	if b.verbose {
		log.Printf("relay: thread=%s relay=%d(%s) state=%s", actor, int(name), name.Label(), state)
	}
	if err := b.link.Exec("relay " + state.word() + " " + name.Hex()); err != nil {
		return err
	}

	c := Change{Time: time.Now(), Actor: actor, Relay: name, State: state}
	b.mu.RLock()
	for _, fn := range b.onChange {
		fn(c)
	}
	b.mu.RUnlock()
	return nil
}

// Read returns the raw relay read payload ("on"/"off").
func (b *Board) Read(name Name) (string, error) {
	if !name.Valid() {
		return "", fmt.Errorf("relay: invalid relay %d", int(name))
	}
	return b.link.Query("relay read " + name.Hex())
}

// RelayState reads a relay and parses the result.
func (b *Board) RelayState(name Name) (State, error) {
	payload, err := b.Read(name)
	if err != nil {
		return Off, err
	}
	return ParseState(payload)
}

// ReadGPIO returns the raw gpio read payload ("0"/"1").
func (b *Board) ReadGPIO(line int) (string, error) {
	return b.link.Query("gpio read " + strconv.Itoa(line))
}

// Reset turns every relay off and re-reads every GPIO line, which puts
// them all back into input mode.
func (b *Board) Reset() error {
	if err := b.link.Exec("reset"); err != nil {
		return err
	}
	for i := 0; i < GPIOLines; i++ {
		if _, err := b.ReadGPIO(i); err != nil {
			return err
		}
	}
	return nil
}
