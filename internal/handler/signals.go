package handler

import (
	"context"

	"github.com/oualline/orange-empire/internal/relay"
)

// runH2: rests off; a press turns the signal on for the H2 window, and
// further presses while on extend the window.
func (s *Set) runH2(ctx context.Context, r *runner) error {
	for {
		if err := r.rest([]output{{relay.H2, relay.Off}}); err != nil {
			return err
		}
		if err := r.trig.Wait(ctx); err != nil {
			return err
		}
		if err := r.apply([]output{{relay.H2, relay.On}}); err != nil {
			return err
		}
		r.enter(On)
		if err := r.hold(ctx, s.timing.H2); err != nil {
			return err
		}
	}
}

// runW4: rests on yellow; a press runs red -> yellow -> green, each press
// during the run advances one step.
func (s *Set) runW4(ctx context.Context, r *runner) error {
	restOutputs := []output{
		{relay.W4Red, relay.Off},
		{relay.W4Yellow, relay.On},
		{relay.W4Green, relay.Off},
	}
	steps := []step{
		{Red, []output{{relay.W4Red, relay.On}, {relay.W4Yellow, relay.Off}}},
		{Yellow, []output{{relay.W4Red, relay.Off}, {relay.W4Yellow, relay.On}}},
		{Green, []output{{relay.W4Yellow, relay.Off}, {relay.W4Green, relay.On}}},
	}
	for {
		if err := r.rest(restOutputs); err != nil {
			return err
		}
		if err := r.trig.Wait(ctx); err != nil {
			return err
		}
		if _, err := r.sequence(ctx, steps, s.timing.W4, false); err != nil {
			return err
		}
	}
}

// runC3: rests all off; a press runs red -> yellow -> green. While the noise
// handler owns the lamps the rest outputs are left alone and presses are
// ignored.
func (s *Set) runC3(ctx context.Context, r *runner) error {
	restOutputs := []output{
		{relay.C3Red, relay.Off},
		{relay.C3Yellow, relay.Off},
		{relay.C3Green, relay.Off},
	}
	steps := []step{
		{Red, []output{{relay.C3Red, relay.On}}},
		{Yellow, []output{{relay.C3Red, relay.Off}, {relay.C3Yellow, relay.On}}},
		{Green, []output{{relay.C3Yellow, relay.Off}, {relay.C3Green, relay.On}}},
	}
	for {
		if err := r.rest(s.normalOnly(restOutputs)); err != nil {
			return err
		}
		if err := r.trig.Wait(ctx); err != nil {
			return err
		}
		if s.shared.Mode() == LowNoise {
			continue
		}
		if _, err := r.sequence(ctx, steps, s.timing.C3, true); err != nil {
			return err
		}
	}
}

// runCar: a press plays a train crossing the block from right to left.
// Entering LowNoise abandons the run at once.
func (s *Set) runCar(ctx context.Context, r *runner) error {
	restOutputs := []output{
		{relay.TrackSemL, relay.Off},
		{relay.TrackSemR, relay.Off},
		{relay.TrackCar, relay.Off},
	}
	steps := []step{
		// no train yet
		{Segment1, []output{{relay.TrackSemL, relay.On}, {relay.TrackSemR, relay.On}, {relay.TrackCar, relay.On}}},
		// train at the track car indicator
		{Segment2, []output{{relay.TrackCar, relay.Off}}},
		// train at the first semaphore
		{Segment3, []output{{relay.TrackCar, relay.On}, {relay.TrackSemL, relay.Off}}},
		// train at the second semaphore
		{Segment4, []output{{relay.TrackSemL, relay.On}, {relay.TrackSemR, relay.Off}}},
	}
	for {
		if err := r.rest(s.normalOnly(restOutputs)); err != nil {
			return err
		}
		if err := r.trig.Wait(ctx); err != nil {
			return err
		}
		if s.shared.Mode() == LowNoise {
			continue
		}
		done, err := r.sequence(ctx, steps, s.timing.Car, true)
		if err != nil {
			return err
		}
		if !done {
			continue
		}
		if err := r.apply([]output{{relay.TrackCar, relay.Off}, {relay.TrackSemL, relay.Off}}); err != nil {
			return err
		}
	}
}

// wigWag builds the loop shared by both wig wags and the bell. A press turns
// the output on for the wig wag window unless sound is switched off or a
// noise run is in progress. With the low-noise switch asserted the press
// also starts the noise handler, at most one run at a time.
func (s *Set) wigWag(name relay.Name) func(context.Context, *runner) error {
	return func(ctx context.Context, r *runner) error {
		for {
			if err := r.rest([]output{{name, relay.Off}}); err != nil {
				return err
			}
			if err := r.trig.Wait(ctx); err != nil {
				return err
			}

			sound, err := s.relays.ReadGPIO(relay.SwitchNoSound)
			if err != nil {
				return err
			}
			if sound == "0" {
				continue
			}
			if s.shared.Active() {
				continue
			}
			low, err := s.relays.ReadGPIO(relay.SwitchLowNoise)
			if err != nil {
				return err
			}
			if low == "0" && s.shared.Claim() {
				s.Push(Noise)
			}

			if err := r.apply([]output{{name, relay.On}}); err != nil {
				return err
			}
			r.enter(On)
			if err := sleep(ctx, s.timing.WigWag); err != nil {
				return err
			}
		}
	}
}

// runNoise takes over the track car indicator and the 3 color lamps and
// plays a slower, quieter version of a train passing. The lamps are not
// reset while idle since the other handlers own them then.
func (s *Set) runNoise(ctx context.Context, r *runner) error {
	type timedStep struct {
		step
		long bool // dwell for the wig wag window instead of the noise step
	}
	steps := []timedStep{
		{step{Segment1, []output{
			{relay.TrackSemL, relay.On}, {relay.TrackSemR, relay.On}, {relay.TrackCar, relay.On},
			{relay.C3Red, relay.On}, {relay.C3Yellow, relay.Off}, {relay.C3Green, relay.Off},
		}}, true},
		// train just made the track car lights
		{step{Segment2, []output{{relay.TrackCar, relay.Off}}}, false},
		// train at the left semaphore
		{step{Segment3, []output{{relay.TrackCar, relay.On}, {relay.TrackSemL, relay.Off}}}, false},
		// train at the right semaphore
		{step{Segment4, []output{{relay.TrackSemL, relay.On}, {relay.TrackSemR, relay.Off}}}, false},
		// clear of the car indicators, just past the yellow light
		{step{Yellow, []output{{relay.TrackSemR, relay.On}, {relay.C3Red, relay.Off}, {relay.C3Yellow, relay.On}}}, false},
	}

	for {
		// stale presses are dropped, but a wig wag that claimed the latch
		// after the last run released it still gets its run
		requested := r.trig.Drain() > 0 && s.shared.Active()
		r.enter(Rest)
		if !requested {
			if err := r.trig.Wait(ctx); err != nil {
				return err
			}
		}

		// manual runs hold the latch too
		s.shared.Claim()
		s.shared.EnterLowNoise()
		for _, st := range steps {
			if err := r.apply(st.set); err != nil {
				return err
			}
			r.enter(st.state)
			d := s.timing.Noise
			if st.long {
				d = s.timing.WigWag
			}
			if err := sleep(ctx, d); err != nil {
				return err
			}
		}

		// last section clear: green, track car indicators back to demo mode
		err := r.apply([]output{
			{relay.C3Yellow, relay.Off}, {relay.C3Green, relay.On},
			{relay.TrackCar, relay.Off}, {relay.TrackSemL, relay.Off}, {relay.TrackSemR, relay.Off},
		})
		if err != nil {
			return err
		}
		r.enter(Clearing)
		if err := sleep(ctx, s.timing.Noise); err != nil {
			return err
		}
		if err := r.apply([]output{{relay.C3Green, relay.Off}}); err != nil {
			return err
		}
		s.shared.ExitLowNoise()
		s.shared.Release()
	}
}

// normalOnly returns outs in Normal mode and nothing in LowNoise.
func (s *Set) normalOnly(outs []output) []output {
	if s.shared.Mode() == LowNoise {
		return nil
	}
	return outs
}
