//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/itohio/microclimate/pkg/config"
)

// RealOutput drives a line on the GPIO character device.
type RealOutput struct {
	line *gpiocdev.Line
}

// Set drives the line.
func (o *RealOutput) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", o.line.Offset(), err)
	}
	return nil
}

// Close drives the line low, returns it to an input and releases it.
func (o *RealOutput) Close() error {
	var errs []error
	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("reset line %d: %w", o.line.Offset(), err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line %d: %w", o.line.Offset(), err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line %d: %w", o.line.Offset(), err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealInput samples a line on the GPIO character device.
type RealInput struct {
	line *gpiocdev.Line
}

// Value returns true when the line is high.
func (i *RealInput) Value() (bool, error) {
	v, err := i.line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", i.line.Offset(), err)
	}
	return v != 0, nil
}

// Close releases the line.
func (i *RealInput) Close() error {
	return i.line.Close()
}

// OpenPins requests every configured line on the chip. Lines with a negative
// offset are replaced by Nop.
func OpenPins(cfg config.GPIOConfig) (*Pins, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	// Requested lines stay valid after the chip is closed.
	defer chip.Close()

	pins := &Pins{}

	outputs := []struct {
		dst    *Output
		offset int
		name   string
		init   int
	}{
		{&pins.Heater, cfg.Heater, "heater", 0},
		{&pins.Humidifier, cfg.Humidifier, "humidifier", 0},
		{&pins.ModemReset, cfg.ModemReset, "modem reset", 1},
		{&pins.ModemEnable, cfg.ModemEnable, "modem enable", 1},
		{&pins.LEDWifi, cfg.LEDWifi, "wifi led", 0},
		{&pins.LEDAlarm, cfg.LEDAlarm, "alarm led", 0},
		{&pins.LEDWarning, cfg.LEDWarning, "warning led", 0},
		{&pins.BusDirection, cfg.BusDirection, "bus direction", 0},
	}
	for _, o := range outputs {
		if o.offset < 0 {
			*o.dst = Nop{}
			continue
		}
		line, err := chip.RequestLine(o.offset, gpiocdev.AsOutput(o.init), gpiocdev.WithConsumer("climated"))
		if err != nil {
			pins.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", o.name, o.offset, err)
		}
		*o.dst = &RealOutput{line: line}
	}

	inputs := []struct {
		dst    *Input
		offset int
		name   string
	}{
		{&pins.Alarm, cfg.AlarmInput, "alarm"},
		{&pins.Running, cfg.RunningInput, "running"},
		{&pins.Service, cfg.ServiceInput, "service"},
	}
	for _, in := range inputs {
		if in.offset < 0 {
			*in.dst = Nop{}
			continue
		}
		line, err := chip.RequestLine(in.offset, gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithConsumer("climated"))
		if err != nil {
			pins.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", in.name, in.offset, err)
		}
		*in.dst = &RealInput{line: line}
	}

	return pins, nil
}
