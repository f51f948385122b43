package relay

import (
	"fmt"
	"io"
	"log"

	"github.com/tarm/serial"
	"golang.org/x/sys/unix"
)

// DefaultDevices is the ordered list of relay boards we know about.
var DefaultDevices = []string{
	"/dev/serial/by-id/usb-Microchip_Technology_Inc._CDC_RS-232_Emulation_Demo-if00",
	"/dev/serial/by-id/usb-Numato_Systems_Pvt._Ltd._Numato_Lab_16_Channel_USB_Relay_Module-if00",
	"/dev/serial/by-id/usb-Numato_Systems_Pvt._Ltd._Numato_Lab_2_Channel_USB_Powered_Relay_Module-if00",
}

// DefaultBaud is the board's line speed.
const DefaultBaud = 115200

// Probe returns the first candidate path that is readable.
func Probe(candidates []string) (string, error) {
	for _, path := range candidates {
		if unix.Access(path, unix.R_OK) == nil {
			return path, nil
		}
	}
	return "", &Error{Op: "probe", Err: ErrDeviceNotFound}
}

// OpenSerial opens the board in raw 8-N-1 mode with the per-byte timeout.
func OpenSerial(path string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        baud,
		ReadTimeout: ByteTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return port, nil
}

// Open probes the candidates and opens the first board found. It returns
// the link and the device path; the caller must Handshake before use.
func Open(candidates []string, baud int) (*Link, string, error) {
	path, err := Probe(candidates)
	if err != nil {
		return nil, "", err
	}
	port, err := OpenSerial(path, baud)
	if err != nil {
		return nil, "", err
	}
	return NewLink(port), path, nil
}

// Dial probes the candidates, opens the first board found and performs the
// startup handshake.
func Dial(candidates []string, baud int) (*Link, error) {
	link, path, err := Open(candidates, baud)
	if err != nil {
		return nil, err
	}
	ver, err := Handshake(link)
	if err != nil {
		link.Close()
		return nil, err
	}
	log.Printf("relay: connected to %s (firmware %s)", path, ver)
	return link, nil
}

// Handshake syncs with a freshly opened board and validates its firmware.
// A board that fails here cannot be trusted and must not be used.
func Handshake(link *Link) (string, error) {
	if err := link.Sync(); err != nil {
		return "", err
	}
	return link.Version()
}
