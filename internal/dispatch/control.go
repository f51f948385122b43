package dispatch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Prompt is written before every command read.
const Prompt = "Cmd> "

// DefaultControlPath is the well-known control socket.
const DefaultControlPath = "/tmp/garden.control"

// maxLine bounds one control command, newline included.
const maxLine = 256

// ListenControl creates the control socket at path, replacing a stale one,
// and opens it to the owner and group.
func ListenControl(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o660); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return ln, nil
}

// ServeControl accepts clients on ln, one goroutine each, until ctx is
// cancelled or a session hits a relay failure. ln is closed on return.
func (d *Dispatcher) ServeControl(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("dispatch: accept: %v", err)
				g.Go(func() error { return err })
			}
			break
		}
		log.Printf("dispatch: control client connected")
		g.Go(func() error {
			defer conn.Close()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()

			err := d.Serve(conn)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Serve runs one command session on rw until the client sends "x" or goes
// away. Only relay failures are returned; client I/O errors end the session
// quietly, and so does a line longer than maxLine.
func (d *Dispatcher) Serve(rw io.ReadWriter) error {
	br := bufio.NewReaderSize(rw, maxLine)
	for {
		if _, err := io.WriteString(rw, Prompt); err != nil {
			log.Printf("dispatch: control client exited when writing prompt: %v", err)
			return nil
		}

		raw, err := br.ReadSlice('\n')
		line := string(raw)
		if errors.Is(err, bufio.ErrBufferFull) {
			log.Printf("dispatch: control line longer than %d bytes, closing session", maxLine)
			return nil
		}
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			if !errors.Is(err, io.EOF) {
				log.Printf("dispatch: control client exited: %v", err)
			}
			return nil
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "x") {
			return nil
		}

		reply, cerr := d.Command(line)
		if cerr != nil {
			log.Printf("dispatch: command %q: %v", line, cerr)
			return cerr
		}
		if _, err := io.WriteString(rw, reply+"\n"); err != nil {
			log.Printf("dispatch: control client exited when writing result: %v", err)
			return nil
		}
		if err != nil {
			// final unterminated line
			return nil
		}
	}
}
