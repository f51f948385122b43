// Command garden-buttons reads the garden's push buttons from GPIO and writes
// one digit per press into the garden daemon's button pipe.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oualline/orange-empire/internal/config"
	"github.com/oualline/orange-empire/internal/gpio"
	"github.com/oualline/orange-empire/internal/logic"
)

// pipeRetry is how long to wait between attempts to open the button pipe.
const pipeRetry = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "YAML configuration file (empty for built-in defaults)")
	printState := flag.Bool("print-state", false, "Print current button state and exit")

	flag.Parse()

	if err := run(*configPath, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, printState bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if len(cfg.Buttons.Lines) == 0 {
		return fmt.Errorf("no button lines configured")
	}

	offsets := make([]int, len(cfg.Buttons.Lines))
	codes := make([]byte, len(cfg.Buttons.Lines))
	for i, l := range cfg.Buttons.Lines {
		offsets[i] = l.Line
		codes[i] = l.Code[0]
	}

	reader, err := gpio.NewRealReader(cfg.Buttons.Chip, offsets)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	if printState {
		pressed, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		for i, p := range pressed {
			fmt.Printf("line %d (%c): %s\n", offsets[i], codes[i], stateString(p))
		}
		return nil
	}

	poll := time.Duration(cfg.Buttons.PollMs) * time.Millisecond
	debounce := time.Duration(cfg.Buttons.DebounceMs) * time.Millisecond
	log.Printf("started: chip=%s lines=%v poll=%v debounce=%v pipe=%s",
		cfg.Buttons.Chip, offsets, poll, debounce, cfg.Control.Pipe)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	out := newPipeWriter(cfg.Control.Pipe, openFIFO, pipeRetry)
	defer out.Close()

	runLoop(reader, codes, out, debounce, time.Now, ticker.C, sigCh)
	return nil
}

func runLoop(reader gpio.Reader, codes []byte, out *pipeWriter, debounce time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) {
	debouncer := logic.NewDebouncer(len(codes), debounce)
	out.Ensure(now())

	for {
		select {
		case s := <-sig:
			counts := debouncer.Counts()
			log.Printf("received %v, shutting down (presses %v)", s, counts)
			return

		case <-tick:
			t := now()
			pressed, err := reader.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			for _, p := range debouncer.Process(logic.Input{Pressed: pressed, Time: t}) {
				code := codes[p.Button]
				log.Printf("press: button %d sends %c", p.Button, code)
				out.Send(code, t)
			}
			out.Ensure(t)
		}
	}
}

func stateString(pressed bool) string {
	if pressed {
		return string(logic.StatePressed)
	}
	return string(logic.StateReleased)
}
