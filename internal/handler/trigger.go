package handler

import (
	"context"
	"time"
)

// triggerDepth bounds the number of queued presses per handler.
// Posts beyond it are coalesced.
const triggerDepth = 32

// Wake tells why a dwell ended.
type Wake int

const (
	Elapsed   Wake = iota // dwell ran its full time
	Triggered             // a trigger arrived and was consumed
	Aborted               // the abort channel closed
)

func (w Wake) String() string {
	switch w {
	case Elapsed:
		return "elapsed"
	case Triggered:
		return "triggered"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Trigger is a counting semaphore: Post adds one pending press and the
// owning handler consumes them one at a time.
type Trigger struct {
	ch chan struct{}
}

// NewTrigger returns a trigger with no pending presses.
func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, triggerDepth)}
}

// Post adds one pending press. It never blocks; it returns false if the
// press was coalesced because the queue is full.
func (t *Trigger) Post() bool {
	select {
	case t.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued presses.
func (t *Trigger) Pending() int {
	return len(t.ch)
}

// Drain discards every queued press and returns how many there were.
func (t *Trigger) Drain() int {
	n := 0
	for {
		select {
		case <-t.ch:
			n++
		default:
			return n
		}
	}
}

// Wait blocks until a press arrives and consumes it.
func (t *Trigger) Wait(ctx context.Context) error {
	select {
	case <-t.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitFor waits up to d for a press. A nil abort channel never fires.
func (t *Trigger) WaitFor(ctx context.Context, d time.Duration, abort <-chan struct{}) (Wake, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-t.ch:
		return Triggered, nil
	case <-abort:
		return Aborted, nil
	case <-timer.C:
		return Elapsed, nil
	case <-ctx.Done():
		return Elapsed, ctx.Err()
	}
}
