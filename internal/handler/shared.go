package handler

import (
	"sync"
	"sync/atomic"
)

// Mode is the process-wide signal mode.
type Mode int32

const (
	Normal   Mode = iota // handlers animate their own signals
	LowNoise             // the noise handler owns the track car and 3 color lamps
)

func (m Mode) String() string {
	if m == LowNoise {
		return "LOW_NOISE"
	}
	return "NORMAL"
}

// Shared holds the coarse flags handlers coordinate through: the global
// mode and the "low noise active" latch. Only the noise handler changes
// the mode.
type Shared struct {
	mode   atomic.Int32
	active atomic.Bool

	mu    sync.Mutex
	quiet chan struct{} // closed while in LowNoise
}

// NewShared returns flags in Normal mode with the latch released.
func NewShared() *Shared {
	return &Shared{quiet: make(chan struct{})}
}

// Mode returns the current mode.
func (s *Shared) Mode() Mode {
	return Mode(s.mode.Load())
}

// Quiet returns a channel that is closed once LowNoise mode is entered.
// Taken while already in LowNoise it is closed on return.
func (s *Shared) Quiet() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiet
}

// EnterLowNoise switches to LowNoise and wakes every abortable dwell.
func (s *Shared) EnterLowNoise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Mode(s.mode.Load()) == LowNoise {
		return
	}
	s.mode.Store(int32(LowNoise))
	close(s.quiet)
}

// ExitLowNoise returns to Normal mode.
func (s *Shared) ExitLowNoise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Mode(s.mode.Load()) == Normal {
		return
	}
	s.quiet = make(chan struct{})
	s.mode.Store(int32(Normal))
}

// Claim takes the "low noise active" latch. Only the caller that gets true
// may request a noise run.
func (s *Shared) Claim() bool {
	return s.active.CompareAndSwap(false, true)
}

// Release clears the latch.
func (s *Shared) Release() {
	s.active.Store(false)
}

// Active reports whether a noise run has been requested and not finished.
func (s *Shared) Active() bool {
	return s.active.Load()
}
