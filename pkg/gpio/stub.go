//go:build !linux

package gpio

import (
	"errors"

	"github.com/itohio/microclimate/pkg/config"
)

// OpenPins returns an error on non-Linux platforms.
func OpenPins(config.GPIOConfig) (*Pins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
