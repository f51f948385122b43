// Command relay-test is an interactive diagnostic for the relay board.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/oualline/orange-empire/internal/config"
	"github.com/oualline/orange-empire/internal/relay"
)

const prompt = "Cmd: "

const helpText = `? -- Help
+<relay> -- Turn relay on
-<relay> -- Turn relay off
s -- Status
r -- Reset
q -- Quit
`

func main() {
	configPath := flag.String("config", "", "YAML configuration file (empty for built-in defaults)")
	verbose := flag.Bool("v", false, "Log every relay write")
	simulate := flag.Bool("r", false, "Simulate the relay board")
	emulate := flag.Bool("emulate", false, "With -r, talk to an in-memory board emulator instead of canned replies")

	flag.Parse()

	if err := run(*configPath, *verbose, *simulate, *emulate); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, verbose, simulate, emulate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var link *relay.Link
	switch {
	case simulate && emulate:
		link = relay.NewLink(relay.NewEmulator())
		if _, err := relay.Handshake(link); err != nil {
			return err
		}
	case simulate:
		link = relay.NewSimulatedLink()
	default:
		link, err = relay.Dial(cfg.Relay.Devices, cfg.Relay.Baud)
		if err != nil {
			return err
		}
	}
	defer link.Close()

	return session(relay.NewBoard(link, verbose), os.Stdin, os.Stdout)
}

// session reads commands from in until "q" or end of input. Relay errors
// end the session; typing mistakes only print help.
func session(board *relay.Board, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		cmd := strings.TrimSpace(sc.Text())
		if cmd == "" {
			fmt.Fprint(out, helpText)
			continue
		}

		var err error
		switch cmd[0] {
		case 'q':
			return nil
		case 's':
			err = printStatus(board, out)
		case '+':
			err = setRelay(board, out, cmd[1:], relay.On)
		case '-':
			err = setRelay(board, out, cmd[1:], relay.Off)
		case 'r':
			err = board.Reset()
		default:
			fmt.Fprint(out, helpText)
		}
		if err != nil {
			return err
		}
	}
}

var errBadRelay = errors.New("bad relay number")

func setRelay(board *relay.Board, out io.Writer, arg string, state relay.State) error {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || !relay.Name(n).Valid() {
		fmt.Fprintf(out, "%v: %q (0-%d)\n", errBadRelay, arg, relay.NumRelays-1)
		return nil
	}
	return board.Set("test", relay.Name(n), state)
}

func printStatus(board *relay.Board, out io.Writer) error {
	for _, n := range relay.Names() {
		s, err := board.Read(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Relay %d (%s) state %s\n", int(n), n.Label(), s)
	}
	for i := 0; i < relay.StatusGPIOs; i++ {
		s, err := board.ReadGPIO(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "GPIO %d state %s\n", i, s)
	}
	return nil
}
