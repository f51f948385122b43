package dispatch

import (
	"fmt"
	"net"
	"strings"

	"github.com/oualline/orange-empire/internal/relay"
)

const helpText = "s -- Status\n" +
	"r -- reset\n" +
	"i -- IP addr\n" +
	"t -- lamp test\n" +
	"b<x> -- Push button x\n" +
	"x -- Exit"

// Command runs one command line and returns the reply, without the trailing
// newline. Only the first character selects the command. Errors are relay
// failures; the reply is empty then.
func (d *Dispatcher) Command(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return helpText, nil
	}

	switch line[0] {
	case 's':
		return d.status()
	case 'r':
		if err := d.board.Reset(); err != nil {
			return "", err
		}
		return "OK", nil
	case 'i':
		return ipAddress(d.iface), nil
	case 't':
		if err := d.lampTest(); err != nil {
			return "", err
		}
		return "OK", nil
	case 'b':
		arg := strings.TrimSpace(line[1:])
		if arg == "" {
			return "Unknown button", nil
		}
		return d.Button(arg[0]), nil
	}
	return helpText, nil
}

// status reads back every relay and the two switch inputs.
func (d *Dispatcher) status() (string, error) {
	lines := make([]string, 0, relay.NumRelays+relay.StatusGPIOs)
	for _, n := range relay.Names() {
		st, err := d.board.Read(n)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("Relay %d:[%s] state %s", int(n), n.Label(), st))
	}
	for i := 0; i < relay.StatusGPIOs; i++ {
		st, err := d.board.ReadGPIO(i)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("GPIO %d state %s", i, st))
	}
	return strings.Join(lines, "\n"), nil
}

// lampTest turns every output on. Nothing turns them off again; the
// operator resets afterwards.
func (d *Dispatcher) lampTest() error {
	for _, n := range relay.Names() {
		if err := d.board.Set("lamp_test", n, relay.On); err != nil {
			return err
		}
	}
	return nil
}

// ipAddress returns the IPv4 address of iface, or of the first non-loopback
// interface when iface has none.
func ipAddress(iface string) string {
	if ifi, err := net.InterfaceByName(iface); err == nil {
		if addrs, err := ifi.Addrs(); err == nil {
			if ip := firstIPv4(addrs); ip != "" {
				return ip
			}
		}
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "0.0.0.0"
	}
	if ip := firstIPv4(addrs); ip != "" {
		return ip
	}
	return "0.0.0.0"
}

func firstIPv4(addrs []net.Addr) string {
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.IsLoopback() {
			continue
		}
		if v4 := ipn.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
