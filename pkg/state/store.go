// Package state holds the controller's shared state: the latest reading,
// the operator settings, the reading history and the status flags.
//
// Each region has its own lock and no method holds more than one of them,
// so there is no lock ordering to get wrong. Values are copied in and out;
// callers never see internal storage.
package state

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/itohio/microclimate/pkg/sample"
)

// Settings are the operator-controlled parameters.
type Settings struct {
	TemperatureSetpoint   float64 // °C, within [sample.TemperatureMin, sample.TemperatureMax]
	HumiditySetpoint      float64 // %RH, within [sample.HumidityMin, sample.HumidityMax]
	AutoMode              bool
	HeatingEnabled        bool // Manual heater command, used when AutoMode is off
	HumidificationEnabled bool // Manual humidifier command, used when AutoMode is off
}

// DefaultSettings returns the power-on settings.
func DefaultSettings() Settings {
	return Settings{
		TemperatureSetpoint: 22.0,
		HumiditySetpoint:    50.0,
		AutoMode:            true,
	}
}

// Flags are single-writer status bits. Each has exactly one writing task;
// any task may read them.
type Flags struct {
	Connected            atomic.Bool // Written by the transport task
	HeatingActive        atomic.Bool // Written by the temperature regulator
	HumidificationActive atomic.Bool // Written by the humidity regulator
	HumidifierAlarm      atomic.Bool // Written by the sensor poller
	HumidifierRunning    atomic.Bool // Written by the sensor poller
	HumidifierService    atomic.Bool // Written by the sensor poller
}

// Store is the shared state of the controller.
type Store struct {
	readingMu sync.RWMutex
	reading   sample.Reading

	settingsMu sync.RWMutex
	settings   Settings

	historyMu sync.RWMutex
	history   History

	Flags Flags
}

// NewStore creates a store with the given initial settings, clamped.
func NewStore(initial Settings) *Store {
	s := &Store{}
	s.settings = sanitize(initial, DefaultSettings())
	return s
}

// Reading returns a copy of the latest reading.
func (s *Store) Reading() sample.Reading {
	s.readingMu.RLock()
	defer s.readingMu.RUnlock()
	return s.reading
}

// SetReading replaces the latest reading.
func (s *Store) SetReading(r sample.Reading) {
	s.readingMu.Lock()
	s.reading = r
	s.readingMu.Unlock()
}

// Settings returns a copy of the settings.
func (s *Store) Settings() Settings {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return s.settings
}

// UpdateSettings applies fn to the settings in one critical section and
// returns the result. Setpoints are clamped to their physical range after
// fn returns; a NaN setpoint leaves the previous value in place. fn must
// not call back into the store.
func (s *Store) UpdateSettings(fn func(*Settings)) Settings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	next := s.settings
	fn(&next)
	s.settings = sanitize(next, s.settings)
	return s.settings
}

// History returns the filled history entries, most recent first.
func (s *Store) History() []sample.Reading {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	return s.history.Entries()
}

// AppendHistory records r as the most recent history entry.
func (s *Store) AppendHistory(r sample.Reading) error {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return s.history.Append(r)
}

// Status is a point-in-time view assembled from every region.
type Status struct {
	Reading              sample.Reading
	Settings             Settings
	Connected            bool
	HeatingActive        bool
	HumidificationActive bool
	HumidifierAlarm      bool
	HumidifierRunning    bool
	HumidifierService    bool
}

// Status collects a snapshot, taking one region lock at a time.
func (s *Store) Status() Status {
	return Status{
		Reading:              s.Reading(),
		Settings:             s.Settings(),
		Connected:            s.Flags.Connected.Load(),
		HeatingActive:        s.Flags.HeatingActive.Load(),
		HumidificationActive: s.Flags.HumidificationActive.Load(),
		HumidifierAlarm:      s.Flags.HumidifierAlarm.Load(),
		HumidifierRunning:    s.Flags.HumidifierRunning.Load(),
		HumidifierService:    s.Flags.HumidifierService.Load(),
	}
}

func sanitize(next, prev Settings) Settings {
	if math.IsNaN(next.TemperatureSetpoint) {
		next.TemperatureSetpoint = prev.TemperatureSetpoint
	}
	if math.IsNaN(next.HumiditySetpoint) {
		next.HumiditySetpoint = prev.HumiditySetpoint
	}
	next.TemperatureSetpoint = sample.ClampTemperature(next.TemperatureSetpoint)
	next.HumiditySetpoint = sample.ClampHumidity(next.HumiditySetpoint)
	return next
}
