// Package gpio provides digital outputs and inputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Output drives a single digital line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close releases the line.
	Close() error
}

// Input samples a single digital line.
type Input interface {
	// Value returns true when the line is high.
	Value() (bool, error)

	// Close releases the line.
	Close() error
}

// Pins groups every line the controller uses.
type Pins struct {
	Heater       Output
	Humidifier   Output
	ModemReset   Output // Active low
	ModemEnable  Output
	LEDWifi      Output
	LEDAlarm     Output
	LEDWarning   Output
	BusDirection Output // High while transmitting on the RS-485 bus

	Alarm   Input
	Running Input
	Service Input
}

// Close releases every line and returns the combined error.
func (p *Pins) Close() error {
	var errs []error
	for _, o := range []Output{p.Heater, p.Humidifier, p.ModemReset, p.ModemEnable, p.LEDWifi, p.LEDAlarm, p.LEDWarning, p.BusDirection} {
		if o == nil {
			continue
		}
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, i := range []Input{p.Alarm, p.Running, p.Service} {
		if i == nil {
			continue
		}
		if err := i.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// Nop is an output or input for a disabled line. Writes are discarded and
// reads return low.
type Nop struct{}

// Set discards the value.
func (Nop) Set(bool) error { return nil }

// Value always returns false.
func (Nop) Value() (bool, error) { return false, nil }

// Close does nothing.
func (Nop) Close() error { return nil }

var (
	_ Output = Nop{}
	_ Input  = Nop{}
)
