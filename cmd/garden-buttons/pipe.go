package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// pipeWriter delivers codes to the daemon's button pipe, re-opening it at
// most once per retry interval while the daemon is away.
type pipeWriter struct {
	path  string
	open  func(path string) (io.WriteCloser, error)
	retry time.Duration

	w        io.WriteCloser
	lastOpen time.Time
	tried    bool
	dropped  int
}

func newPipeWriter(path string, open func(string) (io.WriteCloser, error), retry time.Duration) *pipeWriter {
	return &pipeWriter{path: path, open: open, retry: retry}
}

// Ensure opens the pipe if it is closed and the retry interval has passed.
func (p *pipeWriter) Ensure(now time.Time) {
	if p.w != nil {
		return
	}
	if p.tried && now.Sub(p.lastOpen) < p.retry {
		return
	}
	p.tried = true
	p.lastOpen = now

	w, err := p.open(p.path)
	if err != nil {
		log.Printf("pipe: could not open %s: %v (retry in %v)", p.path, err, p.retry)
		return
	}
	log.Printf("pipe: opened %s", p.path)
	p.w = w
}

// Send writes one code. Presses made while the pipe is closed are dropped.
func (p *pipeWriter) Send(code byte, now time.Time) {
	p.Ensure(now)
	if p.w == nil {
		p.dropped++
		log.Printf("pipe: dropped %c, pipe not open", code)
		return
	}
	if _, err := p.w.Write([]byte{code}); err != nil {
		log.Printf("pipe: write %c: %v", code, err)
		p.dropped++
		p.w.Close()
		p.w = nil
	}
}

// Close closes the pipe if it is open.
func (p *pipeWriter) Close() error {
	if p.w == nil {
		return nil
	}
	err := p.w.Close()
	p.w = nil
	return err
}

// openFIFO opens the write end of path without waiting for a reader: with
// no daemon holding the read end the open fails with ENXIO.
func openFIFO(path string) (io.WriteCloser, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set blocking %s: %w", path, err)
	}
	return os.NewFile(uintptr(fd), path), nil
}
