package mqtt

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/oualline/orange-empire/internal/relay"
)

// Forwarder hands relay changes to a Publisher from its own goroutine so
// that relay writers never wait on the broker.
type Forwarder struct {
	pub     Publisher
	queue   chan relay.Change
	dropped atomic.Int64
}

// NewForwarder creates a Forwarder holding up to size changes.
func NewForwarder(pub Publisher, size int) *Forwarder {
	if size < 1 {
		size = 1
	}
	return &Forwarder{pub: pub, queue: make(chan relay.Change, size)}
}

// Enqueue queues c without blocking; when the queue is full c is dropped.
// It fits relay.Board.OnChange.
func (f *Forwarder) Enqueue(c relay.Change) {
	select {
	case f.queue <- c:
	default:
		if f.dropped.Add(1) == 1 {
			log.Printf("mqtt: relay queue full, dropping changes")
		}
	}
}

// Dropped returns how many changes were dropped.
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run publishes queued changes until ctx is cancelled, then publishes what
// is still queued and returns nil.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case c := <-f.queue:
			f.publish(c)
		case <-ctx.Done():
			for {
				select {
				case c := <-f.queue:
					f.publish(c)
				default:
					return nil
				}
			}
		}
	}
}

func (f *Forwarder) publish(c relay.Change) {
	if err := f.pub.PublishRelay(c); err != nil {
		log.Printf("mqtt: publish relay %s: %v", c.Relay, err)
	}
}
