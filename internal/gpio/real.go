//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads buttons from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	raw   []int
}

// NewRealReader requests offsets on chip as pulled-up inputs.
func NewRealReader(chip string, offsets []int) (*RealReader, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	// Buttons short the line to ground; the pull-up holds it high otherwise.
	lines, err := c.RequestLines(offsets, gpiocdev.AsInput, gpiocdev.WithPullUp,
		gpiocdev.WithConsumer("garden-buttons"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request lines %v: %w", offsets, err)
	}

	return &RealReader{
		chip:  c,
		lines: lines,
		raw:   make([]int, len(offsets)),
	}, nil
}

// Read returns the pressed state of every line.
// Inverts raw GPIO: raw 0 = pressed.
func (r *RealReader) Read() ([]bool, error) {
	if err := r.lines.Values(r.raw); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	pressed := make([]bool, len(r.raw))
	for i, v := range r.raw {
		pressed[i] = v == 0
	}
	return pressed, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
