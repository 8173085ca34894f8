package gpio

import (
	"sync"
	"sync/atomic"
)

// FakeOutput records the value it is driven to.
type FakeOutput struct {
	state  atomic.Bool
	closed atomic.Bool

	mu      sync.Mutex
	history []bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// Set records the value.
func (f *FakeOutput) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.state.Store(on)
	f.mu.Lock()
	f.history = append(f.history, on)
	f.mu.Unlock()
	return nil
}

// On returns the last driven value.
func (f *FakeOutput) On() bool {
	return f.state.Load()
}

// History returns every value driven so far.
func (f *FakeOutput) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history...)
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	return f.closed.Load()
}

// FakeInput returns a value set by the test.
type FakeInput struct {
	state  atomic.Bool
	closed atomic.Bool

	// ReadError, if set, will be returned by Value()
	ReadError error
}

// Drive sets the value returned by Value.
func (f *FakeInput) Drive(on bool) {
	f.state.Store(on)
}

// Value returns the driven value.
func (f *FakeInput) Value() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.state.Load(), nil
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.closed.Store(true)
	return nil
}

// FakePins is a Pins backed entirely by fakes, with typed access for tests.
type FakePins struct {
	Pins

	Heater, Humidifier, ModemReset, ModemEnable *FakeOutput
	LEDWifi, LEDAlarm, LEDWarning, BusDirection *FakeOutput
	Alarm, Running, Service                     *FakeInput
}

// NewFakePins creates a FakePins with every line wired.
func NewFakePins() *FakePins {
	f := &FakePins{
		Heater:       &FakeOutput{},
		Humidifier:   &FakeOutput{},
		ModemReset:   &FakeOutput{},
		ModemEnable:  &FakeOutput{},
		LEDWifi:      &FakeOutput{},
		LEDAlarm:     &FakeOutput{},
		LEDWarning:   &FakeOutput{},
		BusDirection: &FakeOutput{},
		Alarm:        &FakeInput{},
		Running:      &FakeInput{},
		Service:      &FakeInput{},
	}
	f.Pins = Pins{
		Heater:       f.Heater,
		Humidifier:   f.Humidifier,
		ModemReset:   f.ModemReset,
		ModemEnable:  f.ModemEnable,
		LEDWifi:      f.LEDWifi,
		LEDAlarm:     f.LEDAlarm,
		LEDWarning:   f.LEDWarning,
		BusDirection: f.BusDirection,
		Alarm:        f.Alarm,
		Running:      f.Running,
		Service:      f.Service,
	}
	return f
}
