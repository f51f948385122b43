// Package handler runs one state machine per physical signal.
//
// Each handler owns a Trigger and loops forever: drain stale presses, put
// its lamps in the rest state, block for a press, then walk through its
// sequence. Handlers never look at each other's state; they coordinate only
// through Shared (the global mode and the low-noise latch).
package handler

import (
	"context"
	"log"
	"time"

	"github.com/oualline/orange-empire/internal/relay"
	"golang.org/x/sync/errgroup"
)

// ID names a handler.
type ID int

const (
	H2    ID = iota // H2 dwarf spotlight at entrance
	W4              // 4 white light indicator (dwarf)
	C3              // 3 color lights
	Car             // track car indicator
	LWW             // lower quadrant wig wag
	Bell            // crossing bell
	UWW             // upper quadrant wig wag
	Noise           // noise suppression
	numHandlers
)

var idNames = [numHandlers]string{"h2", "w4", "c3", "car", "lww", "bell", "uww", "noise"}

func (id ID) String() string {
	if id < 0 || id >= numHandlers {
		return "unknown"
	}
	return idNames[id]
}

// Valid reports whether id names a handler.
func (id ID) Valid() bool {
	return id >= 0 && id < numHandlers
}

// IDs returns every handler in start order.
func IDs() []ID {
	out := make([]ID, numHandlers)
	for i := range out {
		out[i] = ID(i)
	}
	return out
}

// State is a handler's machine state.
type State string

const (
	Rest     State = "REST"
	On       State = "ON"
	Red      State = "RED"
	Yellow   State = "YELLOW"
	Green    State = "GREEN"
	Segment1 State = "SEGMENT1"
	Segment2 State = "SEGMENT2"
	Segment3 State = "SEGMENT3"
	Segment4 State = "SEGMENT4"
	Clearing State = "CLEARING"
)

// Relays is the part of the relay board the handlers drive.
type Relays interface {
	Set(actor string, name relay.Name, state relay.State) error
	ReadGPIO(line int) (string, error)
}

// Observer is told about every handler state change. It is called from the
// handler's goroutine and must not block.
type Observer func(id ID, state State)

// Timing holds the dwell for each kind of signal.
type Timing struct {
	H2     time.Duration // H2 on window
	Car    time.Duration // each track car stage
	W4     time.Duration // each 4 white light step
	C3     time.Duration // each 3 color step
	WigWag time.Duration // wig wag / bell on window, first noise step
	Noise  time.Duration // remaining noise steps
}

// DefaultTiming returns the exhibit's dwell times.
func DefaultTiming() Timing {
	return Timing{
		H2:     5 * time.Second,
		Car:    6 * time.Second,
		W4:     5 * time.Second,
		C3:     5 * time.Second,
		WigWag: 15 * time.Second,
		Noise:  7 * time.Second,
	}
}

// Set is the full collection of signal handlers.
type Set struct {
	relays   Relays
	shared   *Shared
	timing   Timing
	observe  Observer
	triggers [numHandlers]*Trigger
}

// NewSet creates the handlers. observe may be nil.
func NewSet(relays Relays, timing Timing, observe Observer) *Set {
	if observe == nil {
		observe = func(ID, State) {}
	}
	s := &Set{
		relays:  relays,
		shared:  NewShared(),
		timing:  timing,
		observe: observe,
	}
	for i := range s.triggers {
		s.triggers[i] = NewTrigger()
	}
	return s
}

// Shared returns the coordination flags.
func (s *Set) Shared() *Shared {
	return s.shared
}

// Push posts one press to a handler.
func (s *Set) Push(id ID) bool {
	if !id.Valid() {
		return false
	}
	if !s.triggers[id].Post() {
		log.Printf("handler: %s: trigger queue full, press coalesced", id)
	}
	return true
}

// Run starts every handler and blocks until ctx is cancelled or one of them
// fails. A failed handler means a signal that no longer responds, so the
// first error stops all of them. Run returns nil after cancellation.
func (s *Set) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, id := range IDs() {
		r := &runner{id: id, set: s, trig: s.triggers[id]}
		loop := s.loopFor(id)
		g.Go(func() error {
			err := loop(ctx, r)
			if ctx.Err() != nil {
				// stopped, either by the caller or by a failed sibling
				return nil
			}
			if err != nil {
				log.Printf("handler: %s: %v", r.id, err)
			}
			return err
		})
	}
	return g.Wait()
}

func (s *Set) loopFor(id ID) func(context.Context, *runner) error {
	switch id {
	case H2:
		return s.runH2
	case W4:
		return s.runW4
	case C3:
		return s.runC3
	case Car:
		return s.runCar
	case LWW:
		return s.wigWag(relay.LowerWW)
	case Bell:
		return s.wigWag(relay.Bell)
	case UWW:
		return s.wigWag(relay.UpperWW)
	case Noise:
		return s.runNoise
	}
	panic("handler: no loop for " + id.String())
}

// runner is the per-handler view of the set.
type runner struct {
	id   ID
	set  *Set
	trig *Trigger
}

// output is one relay write within a step.
type output struct {
	relay relay.Name
	state relay.State
}

// step is one timed state of a sequence.
type step struct {
	state State
	set   []output
}

func (r *runner) apply(outs []output) error {
	for _, o := range outs {
		if err := r.set.relays.Set(r.id.String(), o.relay, o.state); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) enter(s State) {
	r.set.observe(r.id, s)
}

// rest drains stale presses, sets the rest outputs and reports REST.
func (r *runner) rest(outs []output) error {
	r.trig.Drain()
	if err := r.apply(outs); err != nil {
		return err
	}
	r.enter(Rest)
	return nil
}

// hold keeps the current outputs for d; every press restarts the time.
func (r *runner) hold(ctx context.Context, d time.Duration) error {
	for {
		wake, err := r.trig.WaitFor(ctx, d, nil)
		if err != nil {
			return err
		}
		if wake == Elapsed {
			return nil
		}
	}
}

// sequence walks through steps, dwelling d in each. A press ends the
// current dwell early and moves on to the next step. When abortable, the
// sequence is abandoned as soon as LowNoise mode begins; the result reports
// whether every step completed.
func (r *runner) sequence(ctx context.Context, steps []step, d time.Duration, abortable bool) (bool, error) {
	shared := r.set.shared
	for _, st := range steps {
		var quiet <-chan struct{}
		if abortable {
			quiet = shared.Quiet()
			if shared.Mode() == LowNoise {
				return false, nil
			}
		}
		if err := r.apply(st.set); err != nil {
			return false, err
		}
		r.enter(st.state)

		wake, err := r.trig.WaitFor(ctx, d, quiet)
		if err != nil {
			return false, err
		}
		if wake == Aborted {
			return false, nil
		}
	}
	return !abortable || shared.Mode() == Normal, nil
}

// sleep waits d without regard to presses.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
