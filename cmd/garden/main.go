// Command garden runs the signal garden: it drives the relay board, animates
// each signal from button presses and serves the control socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oualline/orange-empire/internal/config"
	"github.com/oualline/orange-empire/internal/dispatch"
	"github.com/oualline/orange-empire/internal/handler"
	"github.com/oualline/orange-empire/internal/mqtt"
	"github.com/oualline/orange-empire/internal/relay"
	"github.com/oualline/orange-empire/internal/status"
	"github.com/oualline/orange-empire/internal/web"
	"golang.org/x/sync/errgroup"
)

// mqttPollInterval is how often the status page's MQTT state is refreshed.
const mqttPollInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML configuration file (empty for built-in defaults)")
	verbose := flag.Bool("v", false, "Log every relay write")
	toStderr := flag.Bool("s", false, "Log to stderr as well as syslog")
	debug := flag.Bool("d", false, "Debug: run the command language on stdin/stdout")
	simulate := flag.Bool("r", false, "Simulate the relay board")
	emulate := flag.Bool("emulate", false, "With -r, talk to an in-memory board emulator instead of canned replies")
	httpAddr := flag.String("http", "", "HTTP status address (overrides config; \"off\" disables)")

	flag.Parse()
	if flag.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "extra arguments on the command line")
		flag.Usage()
		os.Exit(1)
	}

	setupLogging(*toStderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	switch *httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = *httpAddr
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := deps{
		connect:   connector(cfg, *simulate, *emulate),
		publisher: newPublisher,
		sig:       sigCh,
	}
	if *debug {
		d.console = struct {
			io.Reader
			io.Writer
		}{os.Stdin, os.Stdout}
	}

	if err := run(context.Background(), cfg, *verbose, d); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// setupLogging sends the log to syslog under the "garden" tag, and to stderr
// as well when toStderr is set. Without syslog everything goes to stderr.
func setupLogging(toStderr bool) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, "garden")
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("syslog unavailable, logging to stderr: %v", err)
		return
	}
	if toStderr {
		log.SetOutput(io.MultiWriter(w, os.Stderr))
		return
	}
	// syslog stamps its own time
	log.SetFlags(0)
	log.SetOutput(w)
}

// deps are the pieces of run that tests replace.
type deps struct {
	// connect opens the relay board. The link is handshaken by run.
	connect func() (*relay.Link, string, error)

	// publisher connects to the MQTT broker.
	publisher func(broker string) (mqtt.Publisher, error)

	// sig delivers shutdown signals.
	sig <-chan os.Signal

	// console, if set, runs a command session (debug mode). The daemon
	// stops when the session ends.
	console io.ReadWriter
}

func connector(cfg *config.Config, simulate, emulate bool) func() (*relay.Link, string, error) {
	switch {
	case simulate && emulate:
		return func() (*relay.Link, string, error) {
			return relay.NewLink(relay.NewEmulator()), "emulate", nil
		}
	case simulate:
		return func() (*relay.Link, string, error) {
			return relay.NewSimulatedLink(), "simulate", nil
		}
	}
	return func() (*relay.Link, string, error) {
		return relay.Open(cfg.Relay.Devices, cfg.Relay.Baud)
	}
}

func newPublisher(broker string) (mqtt.Publisher, error) {
	return mqtt.NewRealPublisher(broker)
}

func run(ctx context.Context, cfg *config.Config, verbose bool, d deps) error {
	link, device, err := d.connect()
	if err != nil {
		return fmt.Errorf("open relay board: %w", err)
	}
	defer link.Close()

	// The board is checked before anything can drive it.
	ver, err := relay.Handshake(link)
	if err != nil {
		return fmt.Errorf("relay board %s: %w", device, err)
	}
	log.Printf("relay: connected to %s (firmware %s)", device, ver)

	board := relay.NewBoard(link, verbose)
	if err := board.Reset(); err != nil {
		return fmt.Errorf("reset relay board: %w", err)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Device:   device,
		Broker:   cfg.MQTT.Broker,
		HTTPAddr: cfg.HTTP.Addr,
		Socket:   cfg.Control.Socket,
		Pipe:     cfg.Control.Pipe,
	})
	tracker.SetFirmware(ver)

	var (
		publisher mqtt.Publisher
		forwarder *mqtt.Forwarder
	)
	if cfg.MQTT.Broker != "" {
		publisher, err = d.publisher(cfg.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer publisher.Close()
		forwarder = mqtt.NewForwarder(publisher, cfg.MQTT.Queue)
	}

	board.OnChange(func(c relay.Change) {
		tracker.RecordRelay(c)
		if forwarder != nil {
			forwarder.Enqueue(c)
		}
	})

	set := handler.NewSet(board, cfg.HandlerTiming(), tracker.ObserveHandler)
	tracker.WatchShared(set.Shared())

	disp := dispatch.New(board, dispatch.PushFunc(func(id handler.ID) bool {
		tracker.RecordPress(id)
		return set.Push(id)
	}), cfg.Control.Interface)

	ln, err := dispatch.ListenControl(cfg.Control.Socket)
	if err != nil {
		return err
	}
	defer os.Remove(cfg.Control.Socket)

	pipe, err := dispatch.OpenButtonPipe(cfg.Control.Pipe)
	if err != nil {
		ln.Close()
		return err
	}

	publishLifecycle(publisher, tracker, "STARTUP", "")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return set.Run(gctx) })
	g.Go(func() error { return disp.ServeControl(gctx, ln) })
	g.Go(func() error { return disp.ServeButtons(gctx, pipe) })
	if forwarder != nil {
		g.Go(func() error { return forwarder.Run(gctx) })
	}
	if cs, ok := publisher.(mqtt.ConnectionStatus); ok {
		g.Go(func() error {
			watchConnection(gctx, cs, tracker, mqttPollInterval)
			return nil
		})
	}
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		g.Go(func() error { return srv.Run(gctx) })
		log.Printf("web: http status server listening on %s", cfg.HTTP.Addr)
	}

	// Written before cancel, read after g.Wait.
	reason := ""
	g.Go(func() error {
		select {
		case s := <-d.sig:
			log.Printf("received %v, shutting down", s)
			reason = signalName(s)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	// The console blocks on its reader, so it is not part of the group.
	consoleErr := make(chan error, 1)
	if d.console != nil {
		go func() {
			consoleErr <- disp.Serve(d.console)
			cancel()
		}()
	}

	log.Printf("started: device=%s socket=%s pipe=%s", device, cfg.Control.Socket, cfg.Control.Pipe)

	err = g.Wait()
	select {
	case cerr := <-consoleErr:
		if err == nil {
			err = cerr
		}
		if reason == "" {
			reason = "CONSOLE"
		}
	default:
	}
	if err != nil {
		reason = err.Error()
	}

	publishLifecycle(publisher, tracker, "SHUTDOWN", reason)
	return err
}

// publishLifecycle sends a retained system event carrying a full status
// snapshot. Publish failures are logged only.
func publishLifecycle(pub mqtt.Publisher, tracker *status.Tracker, event, reason string) {
	if pub == nil {
		return
	}
	if cs, ok := pub.(mqtt.ConnectionStatus); ok {
		tracker.SetMQTTConnected(cs.IsConnected())
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := pub.PublishSystem(ev); err != nil {
		log.Printf("mqtt: failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("mqtt: published %s event", event)
}

// watchConnection copies the broker connection state into tracker until ctx
// is cancelled.
func watchConnection(ctx context.Context, cs mqtt.ConnectionStatus, tracker *status.Tracker, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		tracker.SetMQTTConnected(cs.IsConnected())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
