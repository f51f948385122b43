package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"golang.org/x/sys/unix"
)

// DefaultButtonPath is the well-known button FIFO.
const DefaultButtonPath = "/tmp/garden.input"

// OpenButtonPipe creates the button FIFO at path if needed and opens it.
// Presses queued before startup are thrown away.
//
// The FIFO is opened read-write so that it never reports end of file when
// the button reader restarts.
func OpenButtonPipe(path string) (*os.File, error) {
	err := unix.Mkfifo(path, 0o666)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, &os.PathError{Op: "mkfifo", Path: path, Err: err}
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("%s: not a named pipe", path)
	}
	// mkfifo is subject to the umask
	if err := os.Chmod(path, 0o666); err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	stale, err := drain(fd)
	if err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "read", Path: path, Err: err}
	}
	if stale > 0 {
		log.Printf("dispatch: discarded %d stale bytes from %s", stale, path)
	}

	// a non-blocking descriptor is registered with the runtime poller, so
	// Close unblocks a pending Read
	return os.NewFile(uintptr(fd), path), nil
}

func drain(fd int) (int, error) {
	buf := make([]byte, 256)
	total := 0
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			total += n
			continue
		}
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			return total, nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return total, err
		}
	}
}

// ServeButtons reads presses from f until ctx is cancelled. f is closed on
// return.
func (d *Dispatcher) ServeButtons(ctx context.Context, f *os.File) error {
	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()
	defer f.Close()

	err := d.ReadButtons(f)
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		return fmt.Errorf("button pipe %s closed", f.Name())
	}
	return fmt.Errorf("button pipe: %w", err)
}
