// Package gpio provides push-button input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads the button inputs.
type Reader interface {
	// Read returns one value per requested line, true while the button is
	// held. The buttons pull the line low, so raw 0 = pressed.
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}
